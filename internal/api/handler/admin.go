package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcoot/rosterbot/internal/api/middleware"
	"github.com/mcoot/rosterbot/internal/api/request"
	"github.com/mcoot/rosterbot/internal/api/response"
	"github.com/mcoot/rosterbot/internal/command"
	"github.com/mcoot/rosterbot/internal/services/publish"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/schedule"
)

// AdminHandler serves the administrator commands
type AdminHandler struct {
	engine    registration.EngineInterface
	publisher *publish.Publisher
	calendar  schedule.Calendar
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(engine registration.EngineInterface, publisher *publish.Publisher, calendar schedule.Calendar, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:    engine,
		publisher: publisher,
		calendar:  calendar,
		logger:    logger,
	}
}

// CreateSession handles POST /api/v1/sessions
func (h *AdminHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	var req request.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	date, err := h.calendar.ParseDate(req.Date)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	timeRange, err := command.ParseTimeRange(req.Time)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	session, err := h.engine.CreateSession(r.Context(), caller, date, timeRange, req.Capacity)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	chatID := req.ChatID
	if chatID == "" {
		chatID = caller.ChatID
	}
	if chatID != "" {
		loc, err := h.publisher.Post(r.Context(), chatID, session.ID)
		if err != nil {
			h.logger.Error("failed to post new session",
				slog.Int64("session_id", int64(session.ID)),
				slog.String("error", err.Error()))
		} else {
			session.Location = loc
		}
	}

	response.JSON(w, http.StatusCreated, response.SessionFromModel(session))
}

// AddPlayers handles POST /api/v1/sessions/{id}/players
func (h *AdminHandler) AddPlayers(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	var req request.AddPlayersRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	names := append(req.Names, command.ParseNames(req.Text)...)

	result, err := h.engine.AddPlayers(r.Context(), middleware.GetCaller(r.Context()), id, names)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	h.publisher.SessionChanged(r.Context(), result.Session, result.Promoted...)
	response.JSON(w, http.StatusOK, response.AddPlayersResponseFromResult(result))
}

// RemovePlayer handles DELETE /api/v1/sessions/{id}/players/{player_id}
func (h *AdminHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	playerID, err := playerIDParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.engine.RemovePlayer(r.Context(), middleware.GetCaller(r.Context()), id, playerID)
	h.writeRemoval(w, r, result, err)
}

// RemovePlayerByName handles DELETE /api/v1/sessions/{id}/players?name=
func (h *AdminHandler) RemovePlayerByName(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}

	name := r.URL.Query().Get("name")
	result, err := h.engine.RemovePlayerByName(r.Context(), middleware.GetCaller(r.Context()), id, name)
	h.writeRemoval(w, r, result, err)
}

func (h *AdminHandler) writeRemoval(w http.ResponseWriter, r *http.Request, result *registration.LeaveResult, err error) {
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if result.Outcome == registration.OutcomeRemoved {
		h.publisher.SessionChanged(r.Context(), result.Session, result.Promoted...)
	}
	response.JSON(w, http.StatusOK, response.LeaveResponseFromResult(result))
}

// GetEnabled handles GET /api/v1/settings/enabled
func (h *AdminHandler) GetEnabled(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.engine.Enabled(r.Context())
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SettingsResponse{Enabled: enabled})
}

// SetEnabled handles PUT /api/v1/settings/enabled
func (h *AdminHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req request.SetEnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	enabled, err := command.ParseToggle(req.State)
	if err != nil {
		WriteError(w, r, h.logger, NewInvalidRequestError("state must be on or off"))
		return
	}

	if err := h.engine.SetEnabled(r.Context(), middleware.GetCaller(r.Context()), enabled); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, response.SettingsResponse{Enabled: enabled})
}

// Stats handles GET /api/v1/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context(), middleware.GetCaller(r.Context()))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, response.StatsFromModel(stats))
}

// PlayerStats handles GET /api/v1/stats/players?name=
func (h *AdminHandler) PlayerStats(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		WriteError(w, r, h.logger, NewInvalidRequestError("name is required"))
		return
	}

	stats, err := h.engine.PlayerStats(r.Context(), middleware.GetCaller(r.Context()), name)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerStatsFromModel(stats))
}

// Help handles GET /api/v1/help
func (h *AdminHandler) Help(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.HelpResponse{Text: command.HelpText})
}
