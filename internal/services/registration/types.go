package registration

import (
	"context"
	"time"

	"github.com/mcoot/rosterbot/internal/model"
)

// Authorizer answers whether a caller may run administrative commands
type Authorizer interface {
	IsAdmin(ctx context.Context, caller model.Caller) bool
}

// Policy holds the tunable rules of the engine
type Policy struct {
	// OneSessionPerDay rejects a join when the player is already registered
	// for another session on the same date
	OneSessionPerDay bool

	// LockTimeout bounds the wait for a session's critical section
	LockTimeout time.Duration
}

// DefaultPolicy returns the default engine policy
func DefaultPolicy() Policy {
	return Policy{
		OneSessionPerDay: false,
		LockTimeout:      2 * time.Second,
	}
}

// Outcome is the expected, non-error result of a roster command
type Outcome string

const (
	OutcomeJoinedMain        Outcome = "joined_main"
	OutcomeJoinedReserve     Outcome = "joined_reserve"
	OutcomeAlreadyRegistered Outcome = "already_registered"
	OutcomeRegisteredSameDay Outcome = "registered_same_day"
	OutcomeLeft              Outcome = "left"
	OutcomeRemoved           Outcome = "removed"
	OutcomeNotRegistered     Outcome = "not_registered"
)

// JoinResult describes the effect of a join
type JoinResult struct {
	Outcome Outcome
	Session *model.Session
	Player  *model.Player
	Status  model.Status // zero for OutcomeRegisteredSameDay

	// Promoted lists reserve players moved up before the join was placed,
	// which only happens when an earlier promotion did not complete
	Promoted []*model.Player
}

// LeaveResult describes the effect of a leave or an admin removal
type LeaveResult struct {
	Outcome  Outcome
	Session  *model.Session
	Promoted []*model.Player // in promotion order, empty when nobody moved up
}

// AddedPlayer is one player created by a bulk add
type AddedPlayer struct {
	Player model.Player
	Status model.Status
}

// AddResult describes the effect of a bulk add
type AddResult struct {
	Session  *model.Session
	Added    []AddedPlayer
	Promoted []*model.Player // reserve players moved up before the add
}

// SessionRoster is a session with its current lists
type SessionRoster struct {
	Session *model.Session
	Main    []model.RosterEntry
	Reserve []model.RosterEntry
}
