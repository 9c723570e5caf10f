// Package registration implements joining, leaving and administering session rosters.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/storage"
)

// Engine runs the registration state machine for every session.
//
// Each mutation of a session happens inside that session's critical section,
// so the main list never exceeds capacity and promotions happen once.
type Engine struct {
	storage storage.Storage
	auth    Authorizer
	clock   clock.Clock
	policy  Policy
	locks   *sessionLocks
	logger  *slog.Logger
}

// NewEngine creates a new registration Engine
func NewEngine(
	storage storage.Storage,
	auth Authorizer,
	clock clock.Clock,
	policy Policy,
	logger *slog.Logger,
) *Engine {
	if policy.LockTimeout <= 0 {
		policy.LockTimeout = DefaultPolicy().LockTimeout
	}
	return &Engine{
		storage: storage,
		auth:    auth,
		clock:   clock,
		policy:  policy,
		locks:   newSessionLocks(),
		logger:  logger.With(slog.String("component", "registration")),
	}
}

// Policy returns the engine's policy
func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) requireEnabled(ctx context.Context) error {
	enabled, err := e.storage.IsFeatureEnabled(ctx, model.FeatureRegistration)
	if err != nil {
		return fmt.Errorf("read feature flag: %w", err)
	}
	if !enabled {
		return model.ErrServiceDisabled
	}
	return nil
}

func (e *Engine) requireAdmin(ctx context.Context, actor model.Caller) error {
	if !e.auth.IsAdmin(ctx, actor) {
		return model.ErrNotAdmin
	}
	return nil
}

// withSession runs fn inside the session's critical section
func (e *Engine) withSession(ctx context.Context, id model.SessionID, fn func(*model.Session) error) error {
	release, err := e.locks.acquire(ctx, id, e.policy.LockTimeout)
	if err != nil {
		if errors.Is(err, model.ErrSessionBusy) {
			e.logger.Warn("session lock timed out", slog.Int64("session_id", int64(id)))
		}
		return err
	}
	defer release()

	session, err := e.storage.GetSession(ctx, id)
	if err != nil {
		return err
	}
	return fn(session)
}

// Join registers the caller for a session, on the main list while it has
// room and on the reserve list after that
func (e *Engine) Join(ctx context.Context, caller model.Caller, sessionID model.SessionID) (*JoinResult, error) {
	if caller.ExternalID == "" {
		return nil, model.ErrMissingIdentity
	}
	if err := e.requireEnabled(ctx); err != nil {
		return nil, err
	}

	var result *JoinResult
	err := e.withSession(ctx, sessionID, func(session *model.Session) error {
		player, err := e.storage.UpsertPlayer(ctx, displayName(caller), caller.ExternalID)
		if err != nil {
			return fmt.Errorf("resolve player: %w", err)
		}
		result = &JoinResult{Session: session, Player: player}

		result.Promoted, err = e.refill(ctx, session)
		if err != nil {
			return err
		}

		existing, err := e.storage.GetRegistration(ctx, sessionID, player.ID)
		if err == nil {
			result.Outcome = OutcomeAlreadyRegistered
			result.Status = existing.Status
			return nil
		}
		if !errors.Is(err, model.ErrRegistrationNotFound) {
			return err
		}

		if e.policy.OneSessionPerDay {
			others, err := e.storage.RegisteredSessionsOnDate(ctx, player.ID, session.Date)
			if err != nil {
				return err
			}
			if len(others) > 0 {
				result.Outcome = OutcomeRegisteredSameDay
				return nil
			}
		}

		status, err := e.nextStatus(ctx, session)
		if err != nil {
			return err
		}
		if _, err := e.storage.UpsertRegistration(ctx, sessionID, player.ID, status, nil); err != nil {
			return fmt.Errorf("register player: %w", err)
		}
		result.Status = status
		result.Outcome = OutcomeJoinedMain
		if status == model.StatusReserve {
			result.Outcome = OutcomeJoinedReserve
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logPromotions(result.Session, result.Promoted)
	e.logger.Info("join processed",
		slog.Int64("session_id", int64(sessionID)),
		slog.Int64("player_id", int64(result.Player.ID)),
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}

// nextStatus returns the list a new registration goes on
func (e *Engine) nextStatus(ctx context.Context, session *model.Session) (model.Status, error) {
	main, err := e.storage.ListMain(ctx, session.ID)
	if err != nil {
		return 0, fmt.Errorf("count main list: %w", err)
	}
	if len(main) < session.Capacity {
		return model.StatusMain, nil
	}
	return model.StatusReserve, nil
}

// Leave removes the caller from a session and promotes the first reserve
// player into a freed main-list slot
func (e *Engine) Leave(ctx context.Context, caller model.Caller, sessionID model.SessionID) (*LeaveResult, error) {
	if caller.ExternalID == "" {
		return nil, model.ErrMissingIdentity
	}
	if err := e.requireEnabled(ctx); err != nil {
		return nil, err
	}

	var result *LeaveResult
	err := e.withSession(ctx, sessionID, func(session *model.Session) error {
		result = &LeaveResult{Session: session, Outcome: OutcomeNotRegistered}

		player, err := e.storage.GetPlayerByExternalID(ctx, caller.ExternalID)
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		deleted, err := e.storage.DeleteRegistration(ctx, sessionID, player.ID)
		if err != nil {
			return fmt.Errorf("unregister player: %w", err)
		}
		if !deleted {
			return nil
		}
		result.Outcome = OutcomeLeft
		result.Promoted, err = e.refill(ctx, session)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logPromotions(result.Session, result.Promoted)
	e.logger.Info("leave processed",
		slog.Int64("session_id", int64(sessionID)),
		slog.String("external_id", string(caller.ExternalID)),
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}

// refill promotes reserve players in queue order until the main list is
// back at capacity or the reserve list is empty. A promotion that failed in
// an earlier command is completed by the next one.
func (e *Engine) refill(ctx context.Context, session *model.Session) ([]*model.Player, error) {
	main, err := e.storage.ListMain(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("count main list: %w", err)
	}
	var promoted []*model.Player
	for filled := len(main); filled < session.Capacity; filled++ {
		player, err := e.storage.PromoteFirstReserve(ctx, session.ID)
		if err != nil {
			return promoted, fmt.Errorf("promote reserve: %w", err)
		}
		if player == nil {
			break
		}
		promoted = append(promoted, player)
	}
	return promoted, nil
}

func (e *Engine) logPromotions(session *model.Session, promoted []*model.Player) {
	for _, player := range promoted {
		e.logger.Info("reserve player promoted",
			slog.Int64("session_id", int64(session.ID)),
			slog.Int64("player_id", int64(player.ID)),
			slog.String("player_name", player.FullName))
	}
}

// RemovePlayer removes a player from a session on an administrator's behalf
func (e *Engine) RemovePlayer(ctx context.Context, actor model.Caller, sessionID model.SessionID, playerID model.PlayerID) (*LeaveResult, error) {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return e.remove(ctx, sessionID, func() (bool, error) {
		return e.storage.DeleteRegistration(ctx, sessionID, playerID)
	})
}

// RemovePlayerByName removes the most recently registered player with the
// given name from a session
func (e *Engine) RemovePlayerByName(ctx context.Context, actor model.Caller, sessionID model.SessionID, fullName string) (*LeaveResult, error) {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, model.ErrNoPlayerNames
	}
	return e.remove(ctx, sessionID, func() (bool, error) {
		return e.storage.DeleteRegistrationByPlayerName(ctx, sessionID, fullName)
	})
}

func (e *Engine) remove(ctx context.Context, sessionID model.SessionID, del func() (bool, error)) (*LeaveResult, error) {
	var result *LeaveResult
	err := e.withSession(ctx, sessionID, func(session *model.Session) error {
		result = &LeaveResult{Session: session, Outcome: OutcomeNotRegistered}
		deleted, err := del()
		if err != nil {
			return fmt.Errorf("remove player: %w", err)
		}
		if !deleted {
			return nil
		}
		result.Outcome = OutcomeRemoved
		result.Promoted, err = e.refill(ctx, session)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logPromotions(result.Session, result.Promoted)
	e.logger.Info("player removed by admin",
		slog.Int64("session_id", int64(sessionID)),
		slog.String("outcome", string(result.Outcome)))
	return result, nil
}

// AddPlayers registers name-only players in the given order, filling the
// main list first and overflowing onto the reserve list
func (e *Engine) AddPlayers(ctx context.Context, actor model.Caller, sessionID model.SessionID, names []string) (*AddResult, error) {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	if len(cleaned) == 0 {
		return nil, model.ErrNoPlayerNames
	}

	prov := &model.Provenance{ActorID: actor.ExternalID, ActorName: displayName(actor)}
	var result *AddResult
	err := e.withSession(ctx, sessionID, func(session *model.Session) error {
		result = &AddResult{Session: session, Added: make([]AddedPlayer, 0, len(cleaned))}

		var err error
		result.Promoted, err = e.refill(ctx, session)
		if err != nil {
			return err
		}

		main, err := e.storage.ListMain(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("count main list: %w", err)
		}
		filled := len(main)

		for _, name := range cleaned {
			player, err := e.storage.UpsertPlayer(ctx, name, "")
			if err != nil {
				return fmt.Errorf("create player %q: %w", name, err)
			}
			status := model.StatusReserve
			if filled < session.Capacity {
				status = model.StatusMain
				filled++
			}
			if _, err := e.storage.UpsertRegistration(ctx, sessionID, player.ID, status, prov); err != nil {
				return fmt.Errorf("register player %q: %w", name, err)
			}
			result.Added = append(result.Added, AddedPlayer{Player: *player, Status: status})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logPromotions(result.Session, result.Promoted)
	e.logger.Info("players added by admin",
		slog.Int64("session_id", int64(sessionID)),
		slog.String("actor", string(actor.ExternalID)),
		slog.Int("count", len(result.Added)))
	return result, nil
}

// CreateSession creates a session on an administrator's behalf
func (e *Engine) CreateSession(ctx context.Context, actor model.Caller, date time.Time, r model.TimeRange, capacity int) (*model.Session, error) {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, model.ErrInvalidCapacity
	}

	session, err := e.storage.CreateSession(ctx, date, r, capacity)
	if err != nil {
		return nil, err
	}
	e.logger.Info("session created",
		slog.Int64("session_id", int64(session.ID)),
		slog.String("date", model.FormatDate(session.Date)),
		slog.String("range", r.String()),
		slog.Int("capacity", capacity))
	return session, nil
}

// SetEnabled switches user-facing registration on or off
func (e *Engine) SetEnabled(ctx context.Context, actor model.Caller, enabled bool) error {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return err
	}
	if err := e.storage.SetFeatureEnabled(ctx, model.FeatureRegistration, enabled); err != nil {
		return fmt.Errorf("write feature flag: %w", err)
	}
	e.logger.Info("registration toggled",
		slog.Bool("enabled", enabled),
		slog.String("actor", string(actor.ExternalID)))
	return nil
}

// Enabled reports whether user-facing registration is on
func (e *Engine) Enabled(ctx context.Context) (bool, error) {
	return e.storage.IsFeatureEnabled(ctx, model.FeatureRegistration)
}

// Roster returns a session with its current lists
func (e *Engine) Roster(ctx context.Context, sessionID model.SessionID) (*SessionRoster, error) {
	if err := e.requireEnabled(ctx); err != nil {
		return nil, err
	}
	session, err := e.storage.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return LoadRoster(ctx, e.storage, session)
}

// SessionsForDate returns every session on a date with its lists, by start time
func (e *Engine) SessionsForDate(ctx context.Context, date time.Time) ([]*SessionRoster, error) {
	if err := e.requireEnabled(ctx); err != nil {
		return nil, err
	}
	sessions, err := e.storage.GetSessionsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	rosters := make([]*SessionRoster, 0, len(sessions))
	for _, session := range sessions {
		r, err := LoadRoster(ctx, e.storage, session)
		if err != nil {
			return nil, err
		}
		rosters = append(rosters, r)
	}
	return rosters, nil
}

// FindSession resolves a session by its date and start time
func (e *Engine) FindSession(ctx context.Context, date time.Time, start model.ClockTime) (*model.Session, error) {
	if err := e.requireEnabled(ctx); err != nil {
		return nil, err
	}
	return e.storage.GetSessionByStart(ctx, date, start)
}

// PlayerStats returns participation statistics for players with a name
func (e *Engine) PlayerStats(ctx context.Context, actor model.Caller, fullName string) (*model.PlayerStats, error) {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return e.storage.PlayerStats(ctx, strings.TrimSpace(fullName))
}

// Stats returns store-wide totals, counting players active in the last month
func (e *Engine) Stats(ctx context.Context, actor model.Caller) (*model.AggregateStats, error) {
	if err := e.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return e.storage.AggregateStats(ctx, e.clock.Now().AddDate(0, -1, 0))
}

// LoadRoster reads both lists of a session
func LoadRoster(ctx context.Context, s storage.Storage, session *model.Session) (*SessionRoster, error) {
	main, err := s.ListMain(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	reserve, err := s.ListReserve(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &SessionRoster{Session: session, Main: main, Reserve: reserve}, nil
}

func displayName(c model.Caller) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return string(c.ExternalID)
}

// Interface for dependency injection
type EngineInterface interface {
	Join(ctx context.Context, caller model.Caller, sessionID model.SessionID) (*JoinResult, error)
	Leave(ctx context.Context, caller model.Caller, sessionID model.SessionID) (*LeaveResult, error)
	RemovePlayer(ctx context.Context, actor model.Caller, sessionID model.SessionID, playerID model.PlayerID) (*LeaveResult, error)
	RemovePlayerByName(ctx context.Context, actor model.Caller, sessionID model.SessionID, fullName string) (*LeaveResult, error)
	AddPlayers(ctx context.Context, actor model.Caller, sessionID model.SessionID, names []string) (*AddResult, error)
	CreateSession(ctx context.Context, actor model.Caller, date time.Time, r model.TimeRange, capacity int) (*model.Session, error)
	SetEnabled(ctx context.Context, actor model.Caller, enabled bool) error
	Enabled(ctx context.Context) (bool, error)
	Roster(ctx context.Context, sessionID model.SessionID) (*SessionRoster, error)
	SessionsForDate(ctx context.Context, date time.Time) ([]*SessionRoster, error)
	FindSession(ctx context.Context, date time.Time, start model.ClockTime) (*model.Session, error)
	PlayerStats(ctx context.Context, actor model.Caller, fullName string) (*model.PlayerStats, error)
	Stats(ctx context.Context, actor model.Caller) (*model.AggregateStats, error)
}

// Ensure Engine implements EngineInterface
var _ EngineInterface = (*Engine)(nil)
