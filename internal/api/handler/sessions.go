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

// SessionHandler serves the user-facing roster commands
type SessionHandler struct {
	engine    registration.EngineInterface
	publisher *publish.Publisher
	calendar  schedule.Calendar
	logger    *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(engine registration.EngineInterface, publisher *publish.Publisher, calendar schedule.Calendar, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		engine:    engine,
		publisher: publisher,
		calendar:  calendar,
		logger:    logger,
	}
}

// List handles GET /api/v1/sessions?date=
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	date, err := h.calendar.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	rosters, err := h.engine.SessionsForDate(r.Context(), date)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	resp := response.SessionsResponse{
		Date:     model.FormatDate(date),
		Sessions: make([]response.Roster, len(rosters)),
	}
	for i, roster := range rosters {
		resp.Sessions[i] = response.RosterFromModel(roster)
	}
	response.JSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	roster, err := h.engine.Roster(r.Context(), id)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RosterFromModel(roster))
}

// FindByStart handles GET /api/v1/sessions/at/{date}/{start}
func (h *SessionHandler) FindByStart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, err := h.calendar.ParseDate(vars["date"])
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	start, err := model.ParseClockTime(vars["start"])
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	session, err := h.engine.FindSession(r.Context(), date, start)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	roster, err := h.engine.Roster(r.Context(), session.ID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RosterFromModel(roster))
}

// Join handles POST /api/v1/sessions/{id}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.engine.Join(r.Context(), middleware.GetCaller(r.Context()), id)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	joined := result.Outcome == registration.OutcomeJoinedMain || result.Outcome == registration.OutcomeJoinedReserve
	if joined || len(result.Promoted) > 0 {
		h.publisher.SessionChanged(r.Context(), result.Session, result.Promoted...)
	}
	response.JSON(w, http.StatusOK, response.JoinResponseFromResult(result))
}

// Leave handles POST /api/v1/sessions/{id}/leave
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.engine.Leave(r.Context(), middleware.GetCaller(r.Context()), id)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	if result.Outcome == registration.OutcomeLeft {
		h.publisher.SessionChanged(r.Context(), result.Session, result.Promoted...)
	}
	response.JSON(w, http.StatusOK, response.LeaveResponseFromResult(result))
}
