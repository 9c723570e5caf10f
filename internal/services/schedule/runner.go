package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/model"
)

// Announcer posts newly created sessions to a chat
type Announcer interface {
	Announce(ctx context.Context, chatID string, sessions []*model.Session) error
}

// Retirer is implemented by announcers that hold state for posted sessions.
// The runner calls it after past sessions are purged.
type Retirer interface {
	RetireBefore(date time.Time)
}

// RunnerConfig holds the daily job settings
type RunnerConfig struct {
	// At is the local time of day the job runs
	At model.ClockTime
	// Location is the timezone "today" and At are evaluated in
	Location *time.Location
	// ChatID receives the roster messages; empty skips announcing
	ChatID string
}

// DefaultRunnerConfig runs at 19:00 UTC
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		At:       model.NewClockTime(19, 0),
		Location: time.UTC,
	}
}

// Runner purges past sessions and prepares tomorrow's sessions once a day
type Runner struct {
	scheduler *Scheduler
	announcer Announcer
	clock     clock.Clock
	calendar  Calendar
	cfg       RunnerConfig
	logger    *slog.Logger
}

// NewRunner creates a new Runner
func NewRunner(scheduler *Scheduler, announcer Announcer, clock clock.Clock, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Runner{
		scheduler: scheduler,
		announcer: announcer,
		clock:     clock,
		calendar:  NewCalendar(clock, cfg.Location),
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "schedule-runner")),
	}
}

// NextRun returns the first run time strictly after now
func (r *Runner) NextRun(now time.Time) time.Time {
	local := now.In(r.cfg.Location)
	y, m, d := local.Date()
	next := time.Date(y, m, d, r.cfg.At.Hour(), r.cfg.At.Minute(), 0, 0, r.cfg.Location)
	if !next.After(local) {
		next = time.Date(y, m, d+1, r.cfg.At.Hour(), r.cfg.At.Minute(), 0, 0, r.cfg.Location)
	}
	return next
}

// Today returns the current calendar day in the runner's timezone
func (r *Runner) Today() time.Time {
	return r.calendar.Today()
}

// RunOnce purges the past and makes sure tomorrow's sessions exist and are announced
func (r *Runner) RunOnce(ctx context.Context) error {
	today := r.Today()
	if _, err := r.scheduler.Purge(ctx, today); err != nil {
		return err
	}
	if retirer, ok := r.announcer.(Retirer); ok {
		retirer.RetireBefore(today)
	}

	tomorrow := today.AddDate(0, 0, 1)
	sessions, created, err := r.scheduler.EnsureSessions(ctx, tomorrow)
	if err != nil {
		return err
	}
	if !created || r.cfg.ChatID == "" || r.announcer == nil {
		return nil
	}
	return r.announcer.Announce(ctx, r.cfg.ChatID, sessions)
}

// Run executes RunOnce at the configured time every day until ctx is done
func (r *Runner) Run(ctx context.Context) {
	for {
		next := r.NextRun(r.clock.Now())
		r.logger.Info("next scheduled run", slog.Time("at", next))

		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(next.Sub(r.clock.Now())):
		}

		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("scheduled run failed", slog.String("error", err.Error()))
		}
	}
}
