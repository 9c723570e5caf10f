package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/rosterbot/internal/middleware"
	"github.com/mcoot/rosterbot/internal/web/templates"
)

// Recovery creates panic recovery middleware for the roster board.
// A panicking request gets the HTML error page.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, boardPanicHandler)
}

func boardPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_ = templates.ErrorPage(http.StatusInternalServerError, "Something went wrong. Please try again later.").Render(r.Context(), w)
}
