package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rosterbot/internal/api/middleware"
	"github.com/mcoot/rosterbot/internal/messaging"
	"github.com/mcoot/rosterbot/internal/messaging/sse"
)

// EventsHandler streams chat channel events over SSE
type EventsHandler struct {
	hubs   *sse.HubManager
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hubs *sse.HubManager, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{hubs: hubs, logger: logger}
}

// Chat handles GET /api/v1/chats/{chat_id}/events
func (h *EventsHandler) Chat(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chat_id"]
	caller := middleware.GetCaller(r.Context())
	sse.ServeSSE(w, r, h.hubs.GetOrCreateHub(chatID), subscriberName(r, string(caller.ExternalID)))
}

// Notifications handles GET /api/v1/notifications/events for the calling user
func (h *EventsHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	if caller.ExternalID == "" {
		WriteError(w, r, h.logger, NewInvalidRequestError("caller identity is required"))
		return
	}
	channel := messaging.DirectChannel(caller.ExternalID)
	sse.ServeSSE(w, r, h.hubs.GetOrCreateHub(channel), string(caller.ExternalID))
}

func subscriberName(r *http.Request, id string) string {
	if id != "" {
		return id
	}
	return r.RemoteAddr
}
