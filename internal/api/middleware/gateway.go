package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/rosterbot/internal/api/apierr"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/auth"
)

// Headers set by the chat gateway on every forwarded command
const (
	CallerIDHeader   = "X-Caller-ID"
	CallerNameHeader = "X-Caller-Name"
	ChatIDHeader     = "X-Chat-ID"
)

type contextKey string

const callerContextKey contextKey = "caller"

// Gateway verifies the gateway bearer token and attaches the forwarded caller
// identity to the request context
func Gateway(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authService.ValidateGatewayToken(extractToken(r)); err != nil {
				apierr.WriteError(w, err)
				return
			}

			caller := model.Caller{
				ExternalID: model.ExternalID(strings.TrimSpace(r.Header.Get(CallerIDHeader))),
				Name:       strings.TrimSpace(r.Header.Get(CallerNameHeader)),
				ChatID:     strings.TrimSpace(r.Header.Get(ChatIDHeader)),
			}
			ctx := context.WithValue(r.Context(), callerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// GetCaller returns the forwarded caller, or the zero Caller outside the gateway middleware
func GetCaller(ctx context.Context) model.Caller {
	caller, _ := ctx.Value(callerContextKey).(model.Caller)
	return caller
}
