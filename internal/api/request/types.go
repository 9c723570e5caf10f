package request

// CreateSessionRequest is the request body for creating a session
type CreateSessionRequest struct {
	Date     string `json:"date"` // YYYY-MM-DD, "today" or "tomorrow"
	Time     string `json:"time"` // HH:MM-HH:MM
	Capacity int    `json:"capacity"`
	ChatID   string `json:"chat_id,omitempty"`
}

// AddPlayersRequest is the request body for registering players by name.
// Names may be given as a list, as a comma-separated string, or both.
type AddPlayersRequest struct {
	Names []string `json:"names,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// SetEnabledRequest is the request body for toggling the bot
type SetEnabledRequest struct {
	State string `json:"state"` // on or off
}
