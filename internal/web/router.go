package web

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	commonmw "github.com/mcoot/rosterbot/internal/middleware"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/schedule"
	"github.com/mcoot/rosterbot/internal/web/handler"
	"github.com/mcoot/rosterbot/internal/web/middleware"
)

// RouterConfig holds configuration for the web router
type RouterConfig struct {
	Logger   *slog.Logger
	Engine   registration.EngineInterface
	Calendar schedule.Calendar
}

// NewRouter creates the read-only roster board
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Apply global middleware to all routes
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(commonmw.Logging(cfg.Logger))

	boardHandler := handler.NewBoardHandler(cfg.Engine, cfg.Calendar, cfg.Logger)

	r.HandleFunc("/", boardHandler.Board).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", boardHandler.Session).Methods(http.MethodGet)

	return r
}
