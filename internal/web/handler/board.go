package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/gorilla/mux"

	"github.com/mcoot/rosterbot/internal/api/apierr"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/registration"
	"github.com/mcoot/rosterbot/internal/services/roster"
	"github.com/mcoot/rosterbot/internal/services/schedule"
	"github.com/mcoot/rosterbot/internal/web/templates"
)

// BoardHandler serves the read-only roster board
type BoardHandler struct {
	engine   registration.EngineInterface
	calendar schedule.Calendar
	logger   *slog.Logger
}

// NewBoardHandler creates a new BoardHandler
func NewBoardHandler(engine registration.EngineInterface, calendar schedule.Calendar, logger *slog.Logger) *BoardHandler {
	return &BoardHandler{
		engine:   engine,
		calendar: calendar,
		logger:   logger,
	}
}

// Board renders every session of ?date= (default today)
func (h *BoardHandler) Board(w http.ResponseWriter, r *http.Request) {
	date, err := h.calendar.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	rosters, err := h.engine.SessionsForDate(r.Context(), date)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := templates.BoardData{
		Date:     model.FormatDate(date),
		Previous: model.FormatDate(date.AddDate(0, 0, -1)),
		Next:     model.FormatDate(date.AddDate(0, 0, 1)),
		Rosters:  make([]roster.View, len(rosters)),
	}
	for i, sr := range rosters {
		data.Rosters[i] = roster.Render(sr.Session, sr.Main, sr.Reserve)
	}
	h.render(w, r, http.StatusOK, templates.Board(data))
}

// Session renders one session's roster
func (h *BoardHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.renderError(w, r, apierr.NewInvalidRequestError("invalid session id"))
		return
	}

	sr, err := h.engine.Roster(r.Context(), model.SessionID(id))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, templates.SessionPage(roster.Render(sr.Session, sr.Main, sr.Reserve)))
}

func (h *BoardHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.Status(err)
	message := apierr.Message(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("board request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		message = "Something went wrong. Please try again later."
	}
	h.render(w, r, status, templates.ErrorPage(status, message))
}

func (h *BoardHandler) render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := component.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", slog.String("error", err.Error()))
	}
}
