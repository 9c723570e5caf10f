// Package publish keeps each session's roster message in step with storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rosterbot/internal/messaging"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/roster"
	"github.com/mcoot/rosterbot/internal/storage"
)

// Publisher renders rosters and posts or edits their chat messages
type Publisher struct {
	storage     storage.Storage
	messenger   messaging.Messenger
	defaultChat string
	logger      *slog.Logger

	// serializes post-or-edit so a session never gets two messages
	mu sync.Mutex
}

// NewPublisher creates a new Publisher. Sessions without a message are
// posted to defaultChat; an empty defaultChat leaves them unposted.
func NewPublisher(storage storage.Storage, messenger messaging.Messenger, defaultChat string, logger *slog.Logger) *Publisher {
	return &Publisher{
		storage:     storage,
		messenger:   messenger,
		defaultChat: defaultChat,
		logger:      logger.With(slog.String("component", "publisher")),
	}
}

// Post publishes a fresh roster message for a session in chatID and stores its location
func (p *Publisher) Post(ctx context.Context, chatID string, sessionID model.SessionID) (*model.MessageLocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	view, _, err := p.render(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return p.post(ctx, chatID, sessionID, view)
}

// Refresh edits the session's roster message, re-posting it when the
// message is missing
func (p *Publisher) Refresh(ctx context.Context, sessionID model.SessionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	view, session, err := p.render(ctx, sessionID)
	if err != nil {
		return err
	}

	chatID := p.defaultChat
	if session.Location != nil {
		err := p.messenger.Edit(ctx, *session.Location, view)
		if err == nil {
			return nil
		}
		if !errors.Is(err, messaging.ErrMessageNotFound) {
			return fmt.Errorf("edit roster message: %w", err)
		}
		p.logger.Warn("roster message missing, posting a new one",
			slog.Int64("session_id", int64(sessionID)),
			slog.String("message_id", session.Location.MessageID))
		chatID = session.Location.ChatID
	}
	if chatID == "" {
		return nil
	}

	_, err = p.post(ctx, chatID, sessionID, view)
	return err
}

// Announce posts a roster message for each of sessions
func (p *Publisher) Announce(ctx context.Context, chatID string, sessions []*model.Session) error {
	var errs []error
	for _, session := range sessions {
		if _, err := p.Post(ctx, chatID, session.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyPromoted tells a player they moved off the reserve list. Failures
// are logged only.
func (p *Publisher) NotifyPromoted(ctx context.Context, session *model.Session, player *model.Player) {
	if player == nil || !player.HasExternalID() {
		return
	}
	if err := p.messenger.Notify(ctx, player.ExternalID, roster.PromotionText(session)); err != nil {
		p.logger.Warn("failed to notify promoted player",
			slog.Int64("player_id", int64(player.ID)),
			slog.String("error", err.Error()))
	}
}

// RetireBefore releases messenger state held for sessions dated before date
func (p *Publisher) RetireBefore(date time.Time) {
	pruner, ok := p.messenger.(messaging.Pruner)
	if !ok {
		return
	}
	if n := pruner.ForgetBefore(date); n > 0 {
		p.logger.Info("retired past roster messages",
			slog.String("before", model.FormatDate(date)),
			slog.Int("count", n))
	}
}

// SessionChanged refreshes a session's message after a mutation and
// notifies each promoted player, logging instead of failing
func (p *Publisher) SessionChanged(ctx context.Context, session *model.Session, promoted ...*model.Player) {
	if session == nil {
		return
	}
	if err := p.Refresh(ctx, session.ID); err != nil {
		p.logger.Error("failed to refresh roster message",
			slog.Int64("session_id", int64(session.ID)),
			slog.String("error", err.Error()))
	}
	for _, player := range promoted {
		p.NotifyPromoted(ctx, session, player)
	}
}

func (p *Publisher) render(ctx context.Context, sessionID model.SessionID) (roster.View, *model.Session, error) {
	session, err := p.storage.GetSession(ctx, sessionID)
	if err != nil {
		return roster.View{}, nil, err
	}
	lists, err := registration.LoadRoster(ctx, p.storage, session)
	if err != nil {
		return roster.View{}, nil, err
	}
	return roster.Render(session, lists.Main, lists.Reserve), session, nil
}

func (p *Publisher) post(ctx context.Context, chatID string, sessionID model.SessionID, view roster.View) (*model.MessageLocation, error) {
	loc, err := p.messenger.Post(ctx, chatID, view)
	if err != nil {
		return nil, fmt.Errorf("post roster message: %w", err)
	}
	if err := p.storage.SetSessionLocation(ctx, sessionID, loc); err != nil {
		return nil, fmt.Errorf("store message location: %w", err)
	}
	p.logger.Info("roster message posted",
		slog.Int64("session_id", int64(sessionID)),
		slog.String("chat_id", loc.ChatID),
		slog.String("message_id", loc.MessageID))
	return &loc, nil
}
