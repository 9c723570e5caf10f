package factory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/registration"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

func user(name string) model.Caller {
	return model.Caller{ExternalID: model.ExternalID("tg-" + name), Name: name}
}

func (s *IntegrationSuite) createSession(capacity int) *model.Session {
	session, err := s.app.Engine.CreateSession(s.ctx, s.app.Admin(), s.app.Calendar.Today(),
		model.TimeRange{Start: model.NewClockTime(14, 0), End: model.NewClockTime(16, 0)}, capacity)
	s.Require().NoError(err)
	_, err = s.app.Publisher.Post(s.ctx, TestChatID, session.ID)
	s.Require().NoError(err)
	return session
}

// Test: reserve player is promoted, notified, and the roster message follows along
func (s *IntegrationSuite) TestPromotionFlow() {
	session := s.createSession(1)

	// Step 1: X fills the only slot, Y lands on reserve
	x, err := s.app.Engine.Join(s.ctx, user("X"), session.ID)
	s.Require().NoError(err)
	s.Equal(registration.OutcomeJoinedMain, x.Outcome)
	s.app.Publisher.SessionChanged(s.ctx, x.Session)

	y, err := s.app.Engine.Join(s.ctx, user("Y"), session.ID)
	s.Require().NoError(err)
	s.Equal(registration.OutcomeJoinedReserve, y.Outcome)
	s.app.Publisher.SessionChanged(s.ctx, y.Session)

	// Step 2: X leaves and Y is promoted
	left, err := s.app.Engine.Leave(s.ctx, user("X"), session.ID)
	s.Require().NoError(err)
	s.Equal(registration.OutcomeLeft, left.Outcome)
	s.Require().Len(left.Promoted, 1)
	s.Equal("Y", left.Promoted[0].FullName)
	s.app.Publisher.SessionChanged(s.ctx, left.Session, left.Promoted...)

	roster, err := s.app.Engine.Roster(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(roster.Main, 1)
	s.Equal("Y", roster.Main[0].Player.FullName)
	s.Empty(roster.Reserve)

	// the message location survives every refresh
	stored, err := s.app.Storage.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.Location)
	s.Equal(TestChatID, stored.Location.ChatID)
}

// Test: the daily job creates tomorrow's defaults once and posts them
func (s *IntegrationSuite) TestDailyRunPostsTomorrow() {
	s.app.MockClock.Set(time.Date(2026, time.June, 5, 19, 0, 0, 0, time.UTC))

	s.Require().NoError(s.app.Runner.RunOnce(s.ctx))
	s.Require().NoError(s.app.Runner.RunOnce(s.ctx))

	tomorrow := time.Date(2026, time.June, 6, 0, 0, 0, 0, time.UTC)
	sessions, err := s.app.Storage.GetSessionsForDate(s.ctx, tomorrow)
	s.Require().NoError(err)
	s.Require().Len(sessions, 3)
	for _, session := range sessions {
		s.Require().NotNil(session.Location, "session %d not posted", session.ID)
		s.Equal(TestChatID, session.Location.ChatID)
	}
}

// Test: a lost roster message is re-posted on the next change
func (s *IntegrationSuite) TestLostMessageIsReposted() {
	session := s.createSession(2)
	stored, err := s.app.Storage.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.app.Broker.Forget(*stored.Location)

	result, err := s.app.Engine.Join(s.ctx, user("A"), session.ID)
	s.Require().NoError(err)
	s.app.Publisher.SessionChanged(s.ctx, result.Session)

	reposted, err := s.app.Storage.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(reposted.Location)
	s.NotEqual(stored.Location.MessageID, reposted.Location.MessageID)
}

// Test: many users racing for the last slots never overbook
func (s *IntegrationSuite) TestConcurrentJoinsRespectCapacity() {
	session := s.createSession(4)

	done := make(chan error, 12)
	for i := 0; i < 12; i++ {
		go func(i int) {
			_, err := s.app.Engine.Join(s.ctx, user(fmt.Sprintf("p%d", i)), session.ID)
			done <- err
		}(i)
	}
	for i := 0; i < 12; i++ {
		s.Require().NoError(<-done)
	}

	roster, err := s.app.Engine.Roster(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Len(roster.Main, 4)
	s.Len(roster.Reserve, 8)
}

// Test: the daily run releases messages of purged sessions
func (s *IntegrationSuite) TestDailyRunRetiresPurgedMessages() {
	s.createSession(2)
	s.Equal(1, s.app.Broker.Tracked())

	s.app.MockClock.Advance(24 * time.Hour)
	s.Require().NoError(s.app.Runner.RunOnce(s.ctx))

	announced, err := s.app.Storage.GetSessionsForDate(s.ctx, time.Date(2026, time.June, 3, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().NotEmpty(announced)
	s.Equal(len(announced), s.app.Broker.Tracked())
}
