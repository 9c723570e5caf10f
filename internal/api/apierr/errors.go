package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidTimeRange = "INVALID_TIME_RANGE"
	CodeInvalidCapacity  = "INVALID_CAPACITY"
	CodeMissingIdentity  = "MISSING_IDENTITY"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotAdmin         = "NOT_ADMIN"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodePlayerNotFound   = "PLAYER_NOT_FOUND"
	CodeSessionExists    = "SESSION_EXISTS"
	CodeSessionBusy      = "SESSION_BUSY"
	CodeConflict         = "CONFLICT"
	CodeServiceDisabled  = "SERVICE_DISABLED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// Message returns the client-facing message for an error
func Message(err error) string {
	return toHTTPError(err).apiError.Message
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Validation
	case errors.Is(err, model.ErrInvalidTimeRange), errors.Is(err, model.ErrInvalidClockTime):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidTimeRange, err.Error()}}
	case errors.Is(err, model.ErrInvalidCapacity):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidCapacity, "Capacity must be a positive number"}}
	case errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrNoPlayerNames):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, err.Error()}}
	case errors.Is(err, model.ErrMissingIdentity):
		return &httpError{http.StatusBadRequest, APIError{CodeMissingIdentity, "Caller identity is required"}}

	// Not found
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrPlayerNotFound), errors.Is(err, model.ErrRegistrationNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}

	// Access
	case errors.Is(err, model.ErrNotAdmin):
		return &httpError{http.StatusForbidden, APIError{CodeNotAdmin, "This command is only available to administrators"}}
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or missing gateway token"}}
	case errors.Is(err, model.ErrServiceDisabled):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeServiceDisabled, "Bot is currently disabled"}}

	// Contention
	case errors.Is(err, model.ErrSessionExists):
		return &httpError{http.StatusConflict, APIError{CodeSessionExists, "A session already starts at that time"}}
	case errors.Is(err, model.ErrSessionBusy):
		return &httpError{http.StatusConflict, APIError{CodeSessionBusy, "Session is busy, try again"}}
	case errors.Is(err, model.ErrStoreConflict):
		return &httpError{http.StatusConflict, APIError{CodeConflict, "Concurrent modification, try again"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
