package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Roster message events
	EventRosterPosted EventType = "roster-posted"
	EventRosterEdited EventType = "roster-edited"

	// Direct notifications
	EventNotification EventType = "notification"
)

// Event is the envelope for everything delivered to a chat channel
type Event struct {
	Type      EventType  `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	ChatID    string     `json:"chat_id,omitempty"`
	MessageID string     `json:"message_id,omitempty"`
	Recipient ExternalID `json:"recipient,omitempty"`
	Payload   any        `json:"payload"`
}

// NotificationPayload is the body of a direct notification
type NotificationPayload struct {
	Text string `json:"text"`
}
