package model

import "time"

// PlayerID uniquely identifies a player, assigned by the store
type PlayerID int64

// ExternalID is the opaque messaging-platform identity of a user.
// The empty value means the player has no platform identity (admin-entered).
type ExternalID string

// Player represents a person who can be registered for sessions
type Player struct {
	ID         PlayerID
	FullName   string
	ExternalID ExternalID // empty for name-only players
	CreatedAt  time.Time
}

// HasExternalID reports whether the player can be reached on the platform
func (p *Player) HasExternalID() bool {
	return p.ExternalID != ""
}

// Caller is the identity attached to an incoming command
type Caller struct {
	ExternalID ExternalID
	Name       string
	ChatID     string
}
