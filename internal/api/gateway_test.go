package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rosterbot/internal/api"
	"github.com/mcoot/rosterbot/internal/dependencies/mocks"
	"github.com/mcoot/rosterbot/internal/services/auth"
	"github.com/mcoot/rosterbot/internal/testutil"
)

func TestGatewayTokenRequired(t *testing.T) {
	hash, err := auth.HashToken("gateway-secret")
	require.NoError(t, err)
	authService, err := auth.New(mocks.NewMockClock(time.Now()), auth.Config{GatewayTokenHash: hash})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:      testutil.NopLogger(),
		AuthService: authService,
	})

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"health is open", "/api/v1/health", "", http.StatusOK},
		{"missing token", "/api/v1/help", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/help", "nope", http.StatusUnauthorized},
		{"valid token", "/api/v1/help", "gateway-secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
