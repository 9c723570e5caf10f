// Package messaging defines how roster messages reach a chat.
package messaging

import (
	"context"
	"time"

	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/roster"
)

// ErrMessageNotFound is returned by Edit when the target message is gone
var ErrMessageNotFound = model.ErrMessageNotFound

// Messenger posts and edits roster messages and sends direct notifications
type Messenger interface {
	Post(ctx context.Context, chatID string, view roster.View) (model.MessageLocation, error)
	Edit(ctx context.Context, loc model.MessageLocation, view roster.View) error
	Notify(ctx context.Context, recipient model.ExternalID, text string) error
}

// Pruner is implemented by messengers that keep per-message state and can
// drop it once the sessions it belongs to are gone
type Pruner interface {
	ForgetBefore(date time.Time) int
}

// RosterMessage is the payload of roster-posted and roster-edited events
type RosterMessage struct {
	Text   string      `json:"text"`
	Roster roster.View `json:"roster"`
}

// NewRosterMessage renders the message body for a view
func NewRosterMessage(view roster.View) RosterMessage {
	return RosterMessage{Text: view.Text(), Roster: view}
}

// DirectChannel is the channel carrying notifications for one user
func DirectChannel(recipient model.ExternalID) string {
	return "dm:" + string(recipient)
}
