package model

import (
	"fmt"
	"time"
)

// RegistrationID uniquely identifies a registration row
type RegistrationID int64

// Status is the list a registration belongs to
type Status uint8

const (
	StatusMain Status = iota + 1
	StatusReserve
)

func (s Status) String() string {
	switch s {
	case StatusMain:
		return "main"
	case StatusReserve:
		return "reserve"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s == StatusMain || s == StatusReserve
}

// ParseStatus parses the textual form of a status, rejecting unknown values
func ParseStatus(text string) (Status, error) {
	switch text {
	case "main":
		return StatusMain, nil
	case "reserve":
		return StatusReserve, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, text)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Provenance records who registered a player on their behalf
type Provenance struct {
	ActorID   ExternalID
	ActorName string
}

// Registration links a player to a session
type Registration struct {
	ID           RegistrationID
	SessionID    SessionID
	PlayerID     PlayerID
	Status       Status
	RegisteredAt time.Time
	Provenance   *Provenance // nil for self-registration
}

// RegisteredBySomeoneElse reports whether the registration was made by an
// actor other than the player themselves
func (r *Registration) RegisteredBySomeoneElse(player *Player) bool {
	if r.Provenance == nil {
		return false
	}
	return r.Provenance.ActorID != player.ExternalID
}

// RosterEntry is a registration joined with its player
type RosterEntry struct {
	Player       Player
	Registration Registration
}
