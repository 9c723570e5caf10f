package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rosterbot/internal/api/apierr"
	"github.com/mcoot/rosterbot/internal/api/middleware"
	"github.com/mcoot/rosterbot/internal/api/response"
	"github.com/mcoot/rosterbot/internal/factory"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/registration"
)

type APISuite struct {
	suite.Suite
	app     *factory.TestApp
	handler http.Handler
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.app = factory.NewTestApp()
	s.handler = s.app.Router()
}

func (s *APISuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

func (s *APISuite) request(method, path string, body any, caller model.Caller) *httptest.ResponseRecorder {
	var reqBody bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&reqBody).Encode(body))
	}

	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	if caller.ExternalID != "" {
		req.Header.Set(middleware.CallerIDHeader, string(caller.ExternalID))
	}
	if caller.Name != "" {
		req.Header.Set(middleware.CallerNameHeader, caller.Name)
	}
	if caller.ChatID != "" {
		req.Header.Set(middleware.ChatIDHeader, caller.ChatID)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](s *APISuite, rr *httptest.ResponseRecorder) T {
	var v T
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (s *APISuite) errorCode(rr *httptest.ResponseRecorder) string {
	return decode[apierr.ErrorResponse](s, rr).Error.Code
}

func user(name string) model.Caller {
	return model.Caller{ExternalID: model.ExternalID("tg-" + name), Name: name, ChatID: factory.TestChatID}
}

func (s *APISuite) createSession(timeRange string, capacity int) response.Session {
	rr := s.request(http.MethodPost, "/api/v1/sessions", map[string]any{
		"date":     "today",
		"time":     timeRange,
		"capacity": capacity,
	}, s.app.Admin())
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return decode[response.Session](s, rr)
}

func (s *APISuite) join(id int64, caller model.Caller) response.JoinResponse {
	rr := s.request(http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/join", id), nil, caller)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	return decode[response.JoinResponse](s, rr)
}

func (s *APISuite) TestHealthCheck() {
	rr := s.request(http.MethodGet, "/api/v1/health", nil, model.Caller{})
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "ok")
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *APISuite) TestHelp() {
	rr := s.request(http.MethodGet, "/api/v1/help", nil, user("A"))
	s.Equal(http.StatusOK, rr.Code)
	s.NotEmpty(decode[response.HelpResponse](s, rr).Text)
}

func (s *APISuite) TestCreateSessionPostsRosterMessage() {
	session := s.createSession("14:00-16:00", 6)

	s.Equal("2026-06-01", session.Date)
	s.Equal("14:00", session.Start)
	s.Equal("16:00", session.End)
	s.Equal(factory.TestChatID, session.ChatID)
	s.NotEmpty(session.MessageID)
}

func (s *APISuite) TestCreateSessionValidation() {
	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"reversed range", map[string]any{"time": "16:00-14:00", "capacity": 4}, apierr.CodeInvalidTimeRange},
		{"bad clock", map[string]any{"time": "25:00-26:00", "capacity": 4}, apierr.CodeInvalidTimeRange},
		{"zero capacity", map[string]any{"time": "14:00-16:00", "capacity": 0}, apierr.CodeInvalidCapacity},
		{"bad date", map[string]any{"date": "01/06/2026", "time": "14:00-16:00", "capacity": 4}, apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.request(http.MethodPost, "/api/v1/sessions", tt.body, s.app.Admin())
			s.Equal(http.StatusBadRequest, rr.Code)
			s.Equal(tt.code, s.errorCode(rr))
		})
	}
}

func (s *APISuite) TestCreateSessionDuplicateStart() {
	s.createSession("14:00-16:00", 6)

	rr := s.request(http.MethodPost, "/api/v1/sessions",
		map[string]any{"time": "14:00-15:00", "capacity": 2}, s.app.Admin())
	s.Equal(http.StatusConflict, rr.Code)
	s.Equal(apierr.CodeSessionExists, s.errorCode(rr))
}

func (s *APISuite) TestCreateSessionRequiresAdmin() {
	rr := s.request(http.MethodPost, "/api/v1/sessions",
		map[string]any{"time": "14:00-16:00", "capacity": 6}, user("A"))
	s.Equal(http.StatusForbidden, rr.Code)
	s.Equal(apierr.CodeNotAdmin, s.errorCode(rr))
}

func (s *APISuite) TestJoinFillsMainThenReserve() {
	session := s.createSession("14:00-16:00", 1)

	first := s.join(session.ID, user("X"))
	s.Equal(registration.OutcomeJoinedMain, first.Outcome)
	s.Equal("main", first.Status)

	second := s.join(session.ID, user("Y"))
	s.Equal(registration.OutcomeJoinedReserve, second.Outcome)
	s.Equal("reserve", second.Status)

	again := s.join(session.ID, user("X"))
	s.Equal(registration.OutcomeAlreadyRegistered, again.Outcome)
}

func (s *APISuite) TestJoinRequiresIdentity() {
	session := s.createSession("14:00-16:00", 1)

	rr := s.request(http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/join", session.ID), nil, model.Caller{})
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal(apierr.CodeMissingIdentity, s.errorCode(rr))
}

func (s *APISuite) TestJoinUnknownSession() {
	rr := s.request(http.MethodPost, "/api/v1/sessions/999/join", nil, user("A"))
	s.Equal(http.StatusNotFound, rr.Code)
	s.Equal(apierr.CodeSessionNotFound, s.errorCode(rr))
}

func (s *APISuite) TestLeavePromotesReserve() {
	session := s.createSession("14:00-16:00", 1)
	s.join(session.ID, user("X"))
	s.join(session.ID, user("Y"))

	rr := s.request(http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/leave", session.ID), nil, user("X"))
	s.Require().Equal(http.StatusOK, rr.Code)
	leave := decode[response.LeaveResponse](s, rr)
	s.Equal(registration.OutcomeLeft, leave.Outcome)
	s.Require().Len(leave.Promoted, 1)
	s.Equal("Y", leave.Promoted[0].FullName)

	rr = s.request(http.MethodGet, fmt.Sprintf("/api/v1/sessions/%d", session.ID), nil, user("X"))
	s.Require().Equal(http.StatusOK, rr.Code)
	roster := decode[response.Roster](s, rr)
	s.Require().Len(roster.Main, 1)
	s.Equal("Y", roster.Main[0].Player.FullName)
	s.Empty(roster.Reserve)
	s.Contains(roster.Text, "1️⃣ Y")

	rr = s.request(http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/leave", session.ID), nil, user("X"))
	s.Equal(registration.OutcomeNotRegistered, decode[response.LeaveResponse](s, rr).Outcome)
}

func (s *APISuite) TestListAndFindByStart() {
	s.createSession("16:00-18:00", 6)
	s.createSession("14:00-16:00", 6)

	rr := s.request(http.MethodGet, "/api/v1/sessions?date=2026-06-01", nil, user("A"))
	s.Require().Equal(http.StatusOK, rr.Code)
	list := decode[response.SessionsResponse](s, rr)
	s.Require().Len(list.Sessions, 2)
	s.Equal("14:00", list.Sessions[0].Session.Start)
	s.Equal("16:00", list.Sessions[1].Session.Start)

	rr = s.request(http.MethodGet, "/api/v1/sessions/at/today/16:00", nil, user("A"))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal("16:00", decode[response.Roster](s, rr).Session.Start)

	rr = s.request(http.MethodGet, "/api/v1/sessions/at/today/09:00", nil, user("A"))
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *APISuite) TestAdminAddAndRemovePlayers() {
	session := s.createSession("14:00-16:00", 2)
	path := fmt.Sprintf("/api/v1/sessions/%d/players", session.ID)

	rr := s.request(http.MethodPost, path, map[string]any{"text": "Ivan, Peter, Elena"}, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	added := decode[response.AddPlayersResponse](s, rr)
	s.Require().Len(added.Added, 3)
	s.Equal("main", added.Added[0].Status)
	s.Equal("main", added.Added[1].Status)
	s.Equal("reserve", added.Added[2].Status)

	rr = s.request(http.MethodGet, fmt.Sprintf("/api/v1/sessions/%d", session.ID), nil, user("A"))
	roster := decode[response.Roster](s, rr)
	s.Equal(factory.TestAdminName, roster.Main[0].RegisteredBy)

	rr = s.request(http.MethodDelete, path+"?name=Ivan", nil, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code)
	removed := decode[response.LeaveResponse](s, rr)
	s.Equal(registration.OutcomeRemoved, removed.Outcome)
	s.Require().Len(removed.Promoted, 1)
	s.Equal("Elena", removed.Promoted[0].FullName)

	peter := added.Added[1].Player.ID
	rr = s.request(http.MethodDelete, fmt.Sprintf("%s/%d", path, peter), nil, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Equal(registration.OutcomeRemoved, decode[response.LeaveResponse](s, rr).Outcome)

	rr = s.request(http.MethodDelete, path+"?name=Nobody", nil, s.app.Admin())
	s.Equal(registration.OutcomeNotRegistered, decode[response.LeaveResponse](s, rr).Outcome)

	rr = s.request(http.MethodPost, path, map[string]any{"names": []string{" ", ""}}, s.app.Admin())
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.request(http.MethodPost, path, map[string]any{"text": "Mallory"}, user("A"))
	s.Equal(http.StatusForbidden, rr.Code)
}

func (s *APISuite) TestToggleDisablesUserCommands() {
	session := s.createSession("14:00-16:00", 2)

	rr := s.request(http.MethodPut, "/api/v1/settings/enabled", map[string]any{"state": "off"}, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code)
	s.False(decode[response.SettingsResponse](s, rr).Enabled)

	rr = s.request(http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/join", session.ID), nil, user("A"))
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.Equal(apierr.CodeServiceDisabled, s.errorCode(rr))

	rr = s.request(http.MethodGet, "/api/v1/sessions", nil, user("A"))
	s.Equal(http.StatusServiceUnavailable, rr.Code)

	rr = s.request(http.MethodPut, "/api/v1/settings/enabled", map[string]any{"state": "on"}, user("A"))
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.request(http.MethodPut, "/api/v1/settings/enabled", map[string]any{"state": "maybe"}, s.app.Admin())
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.request(http.MethodPut, "/api/v1/settings/enabled", map[string]any{"state": "on"}, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/settings/enabled", nil, user("A"))
	s.True(decode[response.SettingsResponse](s, rr).Enabled)

	s.join(session.ID, user("A"))
}

func (s *APISuite) TestStats() {
	session := s.createSession("14:00-16:00", 2)
	s.join(session.ID, user("A"))
	s.join(session.ID, user("B"))

	rr := s.request(http.MethodGet, "/api/v1/stats", nil, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code)
	stats := decode[response.Stats](s, rr)
	s.Equal(1, stats.TotalSessions)
	s.Equal(2, stats.TotalPlayers)
	s.Equal(2, stats.ActivePlayers)

	rr = s.request(http.MethodGet, "/api/v1/stats/players?name=A", nil, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code)
	player := decode[response.PlayerStats](s, rr)
	s.Equal(1, player.TotalGames)
	s.Require().NotNil(player.LastGameDate)
	s.Equal("2026-06-01", *player.LastGameDate)

	rr = s.request(http.MethodGet, "/api/v1/stats/players", nil, s.app.Admin())
	s.Equal(http.StatusBadRequest, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/stats", nil, user("A"))
	s.Equal(http.StatusForbidden, rr.Code)
}

func (s *APISuite) TestScheduleEnsureIsIdempotent() {
	rr := s.request(http.MethodPost, "/api/v1/schedule/2026-06-06", nil, s.app.Admin())
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	first := decode[response.ScheduleResponse](s, rr)
	s.True(first.Created)
	s.Require().Len(first.Sessions, 3)

	rr = s.request(http.MethodPost, "/api/v1/schedule/2026-06-06", nil, s.app.Admin())
	second := decode[response.ScheduleResponse](s, rr)
	s.False(second.Created)
	s.Len(second.Sessions, 3)

	rr = s.request(http.MethodGet, "/api/v1/sessions?date=2026-06-06", nil, user("A"))
	list := decode[response.SessionsResponse](s, rr)
	s.Require().Len(list.Sessions, 3)
	s.NotEmpty(list.Sessions[0].Session.MessageID)

	rr = s.request(http.MethodPost, "/api/v1/schedule/tomorrow", nil, user("A"))
	s.Equal(http.StatusForbidden, rr.Code)

	rr = s.request(http.MethodGet, "/api/v1/schedule", nil, user("A"))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Len(decode[response.PolicyResponse](s, rr).Weekend, 3)
}

func (s *APISuite) TestInvalidSessionID() {
	rr := s.request(http.MethodGet, "/api/v1/sessions/0", nil, user("A"))
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *APISuite) TestNotificationsRequireIdentity() {
	rr := s.request(http.MethodGet, "/api/v1/notifications/events", nil, model.Caller{})
	s.Equal(http.StatusBadRequest, rr.Code)
}
