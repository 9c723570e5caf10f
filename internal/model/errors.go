package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("a session already starts at that time on that date")
	ErrSessionBusy      = errors.New("session is busy, try again")
	ErrInvalidTimeRange = errors.New("invalid session time")
	ErrInvalidClockTime = errors.New("invalid time of day")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidCapacity  = errors.New("capacity must be a positive number")

	// Registration errors
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrInvalidStatus        = errors.New("invalid registration status")
	ErrNoPlayerNames        = errors.New("no player names given")
	ErrMissingIdentity      = errors.New("caller has no platform identity")

	// Access errors
	ErrServiceDisabled = errors.New("bot is currently disabled")
	ErrNotAdmin        = errors.New("this command is only available to administrators")
	ErrUnauthorized    = errors.New("unauthorized")

	// Store errors
	ErrStoreConflict = errors.New("concurrent modification, try again")

	// Messaging errors
	ErrChatNotConfigured = errors.New("no chat configured for roster messages")
	ErrMessageNotFound   = errors.New("message not found")
)
