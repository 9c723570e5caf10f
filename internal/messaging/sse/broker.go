package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/dependencies/random"
	"github.com/mcoot/rosterbot/internal/messaging"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/roster"
)

const messageIDLength = 12

// Broker is a Messenger that publishes roster messages as SSE events.
// It remembers which messages it posted, keyed to their session date, so
// edits to unknown messages fail the way a chat platform would.
type Broker struct {
	hubs   *HubManager
	random random.Random
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	messages map[model.MessageLocation]string // session date in model.DateLayout
}

// Ensure Broker implements Messenger
var (
	_ messaging.Messenger = (*Broker)(nil)
	_ messaging.Pruner    = (*Broker)(nil)
)

// NewBroker creates a new Broker
func NewBroker(hubs *HubManager, random random.Random, clock clock.Clock, logger *slog.Logger) *Broker {
	return &Broker{
		hubs:     hubs,
		random:   random,
		clock:    clock,
		logger:   logger.With(slog.String("component", "sse-broker")),
		messages: make(map[model.MessageLocation]string),
	}
}

// Hubs returns the hub manager subscribers attach to
func (b *Broker) Hubs() *HubManager {
	return b.hubs
}

// Post publishes a new roster message to a chat
func (b *Broker) Post(ctx context.Context, chatID string, view roster.View) (model.MessageLocation, error) {
	if chatID == "" {
		return model.MessageLocation{}, model.ErrChatNotConfigured
	}

	loc := model.MessageLocation{
		ChatID:    chatID,
		MessageID: b.random.String(messageIDLength, random.Alphanumeric),
	}

	b.mu.Lock()
	b.messages[loc] = view.Date
	b.mu.Unlock()

	err := b.publish(chatID, model.Event{
		Type:      model.EventRosterPosted,
		ChatID:    loc.ChatID,
		MessageID: loc.MessageID,
		Payload:   messaging.NewRosterMessage(view),
	})
	return loc, err
}

// Edit replaces the content of a previously posted roster message
func (b *Broker) Edit(ctx context.Context, loc model.MessageLocation, view roster.View) error {
	b.mu.RLock()
	_, ok := b.messages[loc]
	b.mu.RUnlock()
	if !ok {
		return messaging.ErrMessageNotFound
	}

	return b.publish(loc.ChatID, model.Event{
		Type:      model.EventRosterEdited,
		ChatID:    loc.ChatID,
		MessageID: loc.MessageID,
		Payload:   messaging.NewRosterMessage(view),
	})
}

// Notify sends a direct notification to one user
func (b *Broker) Notify(ctx context.Context, recipient model.ExternalID, text string) error {
	if recipient == "" {
		return fmt.Errorf("notify: %w", model.ErrMissingIdentity)
	}
	return b.publish(messaging.DirectChannel(recipient), model.Event{
		Type:      model.EventNotification,
		Recipient: recipient,
		Payload:   model.NotificationPayload{Text: text},
	})
}

// Forget drops a message so later edits to it fail with ErrMessageNotFound
func (b *Broker) Forget(loc model.MessageLocation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.messages, loc)
}

// ForgetBefore drops every message whose session is dated before date and
// returns how many were dropped
func (b *Broker) ForgetBefore(date time.Time) int {
	cutoff := model.FormatDate(model.DateOf(date))

	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for loc, sessionDate := range b.messages {
		if sessionDate < cutoff {
			delete(b.messages, loc)
			dropped++
		}
	}
	if dropped > 0 {
		b.logger.Debug("forgot past roster messages",
			slog.String("before", cutoff),
			slog.Int("count", dropped))
	}
	return dropped
}

// Tracked returns how many posted messages the broker still accepts edits for
func (b *Broker) Tracked() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}

func (b *Broker) publish(channel string, event model.Event) error {
	event.Timestamp = b.clock.Now()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	hub := b.hubs.GetHub(channel)
	if hub == nil {
		// nobody listening
		b.logger.Debug("sse event without subscribers",
			slog.String("channel", channel),
			slog.String("event", string(event.Type)))
		return nil
	}
	hub.BroadcastEvent(string(event.Type), string(data))
	return nil
}
