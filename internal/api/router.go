package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rosterbot/internal/api/apierr"
	"github.com/mcoot/rosterbot/internal/api/handler"
	"github.com/mcoot/rosterbot/internal/api/middleware"
	commonmw "github.com/mcoot/rosterbot/internal/middleware"
	"github.com/mcoot/rosterbot/internal/messaging/sse"
	"github.com/mcoot/rosterbot/internal/services/auth"
	"github.com/mcoot/rosterbot/internal/services/publish"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/schedule"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Engine      registration.EngineInterface
	Publisher   *publish.Publisher
	Scheduler   *schedule.Scheduler
	Calendar    schedule.Calendar
	HubManager  *sse.HubManager
	DefaultChat string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.Engine, cfg.Publisher, cfg.Calendar, cfg.Logger)
	adminHandler := handler.NewAdminHandler(cfg.Engine, cfg.Publisher, cfg.Calendar, cfg.Logger)
	scheduleHandler := handler.NewScheduleHandler(cfg.Scheduler, cfg.Publisher, cfg.AuthService, cfg.Calendar, cfg.DefaultChat, cfg.Logger)
	eventsHandler := handler.NewEventsHandler(cfg.HubManager, cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(commonmw.Recovery(cfg.Logger, writePanicError))
	api.Use(commonmw.Logging(cfg.Logger))

	// Health check endpoint (no gateway token)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Everything else is forwarded by the chat gateway
	gw := api.NewRoute().Subrouter()
	gw.Use(middleware.Gateway(cfg.AuthService))

	gw.HandleFunc("/help", adminHandler.Help).Methods(http.MethodGet)

	// Session routes
	gw.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	gw.HandleFunc("/sessions", adminHandler.CreateSession).Methods(http.MethodPost)
	gw.HandleFunc("/sessions/at/{date}/{start}", sessionHandler.FindByStart).Methods(http.MethodGet)
	gw.HandleFunc("/sessions/{id:[0-9]+}", sessionHandler.Get).Methods(http.MethodGet)
	gw.HandleFunc("/sessions/{id:[0-9]+}/join", sessionHandler.Join).Methods(http.MethodPost)
	gw.HandleFunc("/sessions/{id:[0-9]+}/leave", sessionHandler.Leave).Methods(http.MethodPost)

	// Admin roster routes
	gw.HandleFunc("/sessions/{id:[0-9]+}/players", adminHandler.AddPlayers).Methods(http.MethodPost)
	gw.HandleFunc("/sessions/{id:[0-9]+}/players", adminHandler.RemovePlayerByName).Methods(http.MethodDelete)
	gw.HandleFunc("/sessions/{id:[0-9]+}/players/{player_id:[0-9]+}", adminHandler.RemovePlayer).Methods(http.MethodDelete)

	// Settings and stats
	gw.HandleFunc("/settings/enabled", adminHandler.GetEnabled).Methods(http.MethodGet)
	gw.HandleFunc("/settings/enabled", adminHandler.SetEnabled).Methods(http.MethodPut)
	gw.HandleFunc("/stats", adminHandler.Stats).Methods(http.MethodGet)
	gw.HandleFunc("/stats/players", adminHandler.PlayerStats).Methods(http.MethodGet)

	// Scheduling
	gw.HandleFunc("/schedule", scheduleHandler.Policy).Methods(http.MethodGet)
	gw.HandleFunc("/schedule/{date}", scheduleHandler.Ensure).Methods(http.MethodPost)

	// Event streams
	gw.HandleFunc("/chats/{chat_id}/events", eventsHandler.Chat).Methods(http.MethodGet)
	gw.HandleFunc("/notifications/events", eventsHandler.Notifications).Methods(http.MethodGet)

	return r
}

// writePanicError answers a recovered panic with the generic JSON internal error
func writePanicError(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
