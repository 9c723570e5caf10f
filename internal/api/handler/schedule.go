package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rosterbot/internal/api/middleware"
	"github.com/mcoot/rosterbot/internal/api/response"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/publish"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/schedule"
)

// ScheduleHandler exposes the default-session scheduler to administrators
type ScheduleHandler struct {
	scheduler   *schedule.Scheduler
	publisher   *publish.Publisher
	auth        registration.Authorizer
	calendar    schedule.Calendar
	defaultChat string
	logger      *slog.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(
	scheduler *schedule.Scheduler,
	publisher *publish.Publisher,
	auth registration.Authorizer,
	calendar schedule.Calendar,
	defaultChat string,
	logger *slog.Logger,
) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler:   scheduler,
		publisher:   publisher,
		auth:        auth,
		calendar:    calendar,
		defaultChat: defaultChat,
		logger:      logger,
	}
}

// Policy handles GET /api/v1/schedule
func (h *ScheduleHandler) Policy(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.PolicyFromSchedule(h.scheduler.Policy()))
}

// Ensure handles POST /api/v1/schedule/{date}. It creates the date's default
// sessions if the date has none and posts them.
func (h *ScheduleHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	if !h.auth.IsAdmin(r.Context(), caller) {
		WriteError(w, r, h.logger, model.ErrNotAdmin)
		return
	}

	date, err := h.calendar.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	sessions, created, err := h.scheduler.EnsureSessions(r.Context(), date)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	chatID := caller.ChatID
	if chatID == "" {
		chatID = h.defaultChat
	}
	if created && chatID != "" {
		if err := h.publisher.Announce(r.Context(), chatID, sessions); err != nil {
			h.logger.Error("failed to announce sessions",
				slog.String("date", model.FormatDate(date)),
				slog.String("error", err.Error()))
		}
	}

	response.JSON(w, http.StatusOK, response.ScheduleResponseFromSessions(date, created, sessions))
}
