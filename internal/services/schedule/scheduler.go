package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/storage"
)

// Scheduler creates the default sessions of a date at most once
type Scheduler struct {
	storage storage.Storage
	policy  Policy
	logger  *slog.Logger

	mu sync.Mutex
}

// NewScheduler creates a new Scheduler
func NewScheduler(storage storage.Storage, policy Policy, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		storage: storage,
		policy:  policy,
		logger:  logger.With(slog.String("component", "scheduler")),
	}
}

// Policy returns the scheduler's policy
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// EnsureSessions creates date's default sessions unless the date already has
// sessions. It returns the sessions on the date and whether it created them.
func (s *Scheduler) EnsureSessions(ctx context.Context, date time.Time) ([]*model.Session, bool, error) {
	date = model.DateOf(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	has, err := s.storage.HasSessionsForDate(ctx, date)
	if err != nil {
		return nil, false, fmt.Errorf("check sessions for date: %w", err)
	}
	if has {
		sessions, err := s.storage.GetSessionsForDate(ctx, date)
		return sessions, false, err
	}

	created := 0
	for _, slot := range s.policy.PlanDefaultSessions(date) {
		_, err := s.storage.CreateSession(ctx, date, slot.Range, slot.Capacity)
		if errors.Is(err, model.ErrSessionExists) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("create session %s: %w", slot, err)
		}
		created++
	}

	s.logger.Info("default sessions created",
		slog.String("date", model.FormatDate(date)),
		slog.Int("count", created))

	sessions, err := s.storage.GetSessionsForDate(ctx, date)
	if err != nil {
		return nil, false, err
	}
	return sessions, created > 0, nil
}

// Purge deletes every session dated before today together with its registrations
func (s *Scheduler) Purge(ctx context.Context, today time.Time) (int, error) {
	deleted, err := s.storage.DeleteSessionsBefore(ctx, model.DateOf(today))
	if err != nil {
		return deleted, fmt.Errorf("purge sessions: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("past sessions purged", slog.Int("count", deleted))
	}
	return deleted, nil
}
