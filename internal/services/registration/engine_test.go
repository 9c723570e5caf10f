package registration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rosterbot/internal/dependencies/mocks"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/auth"
	"github.com/mcoot/rosterbot/internal/storage"
	"github.com/mcoot/rosterbot/internal/storage/memory"
	"github.com/mcoot/rosterbot/internal/testutil"
)

type EngineSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	engine  *Engine
	ctx     context.Context
	admin   model.Caller
	today   time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	s.storage = memory.New(s.clock)
	s.admin = model.Caller{ExternalID: "admin-1", Name: "Coach"}
	authService, err := auth.New(s.clock, auth.Config{AdminIDs: []model.ExternalID{s.admin.ExternalID}})
	s.Require().NoError(err)
	s.engine = NewEngine(s.storage, authService, s.clock, DefaultPolicy(), testutil.NopLogger())
	s.ctx = context.Background()
	s.today = model.DateOf(s.clock.Now())
}

func (s *EngineSuite) withPolicy(p Policy) {
	s.engine = NewEngine(s.storage, s.engine.auth, s.clock, p, testutil.NopLogger())
}

func (s *EngineSuite) createSession(start string, capacity int) *model.Session {
	startTime, err := model.ParseClockTime(start)
	s.Require().NoError(err)
	session, err := s.engine.CreateSession(s.ctx, s.admin, s.today,
		model.TimeRange{Start: startTime, End: startTime + 120}, capacity)
	s.Require().NoError(err)
	return session
}

func caller(name string) model.Caller {
	return model.Caller{ExternalID: model.ExternalID("tg-" + name), Name: name}
}

func (s *EngineSuite) join(session *model.Session, name string) *JoinResult {
	s.clock.Advance(time.Second)
	result, err := s.engine.Join(s.ctx, caller(name), session.ID)
	s.Require().NoError(err)
	return result
}

func (s *EngineSuite) lists(session *model.Session) ([]string, []string) {
	roster, err := LoadRoster(s.ctx, s.storage, session)
	s.Require().NoError(err)
	var main, reserve []string
	for _, e := range roster.Main {
		main = append(main, e.Player.FullName)
	}
	for _, e := range roster.Reserve {
		reserve = append(reserve, e.Player.FullName)
	}
	return main, reserve
}

// Join tests

func (s *EngineSuite) TestJoinFillsMainThenReserve() {
	session := s.createSession("14:00", 2)

	s.Equal(OutcomeJoinedMain, s.join(session, "A").Outcome)
	s.Equal(OutcomeJoinedMain, s.join(session, "B").Outcome)
	third := s.join(session, "C")
	s.Equal(OutcomeJoinedReserve, third.Outcome)
	s.Equal(model.StatusReserve, third.Status)

	main, reserve := s.lists(session)
	s.Equal([]string{"A", "B"}, main)
	s.Equal([]string{"C"}, reserve)
}

func (s *EngineSuite) TestJoinIsIdempotent() {
	session := s.createSession("14:00", 2)
	first := s.join(session, "A")
	second := s.join(session, "A")

	s.Equal(OutcomeAlreadyRegistered, second.Outcome)
	s.Equal(model.StatusMain, second.Status)
	s.Equal(first.Player.ID, second.Player.ID)

	main, reserve := s.lists(session)
	s.Equal([]string{"A"}, main)
	s.Empty(reserve)
}

func (s *EngineSuite) TestJoinUnknownSession() {
	_, err := s.engine.Join(s.ctx, caller("A"), 404)
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *EngineSuite) TestJoinRequiresIdentity() {
	session := s.createSession("14:00", 2)
	_, err := s.engine.Join(s.ctx, model.Caller{Name: "Anonymous"}, session.ID)
	s.ErrorIs(err, model.ErrMissingIdentity)
}

func (s *EngineSuite) TestJoinUsesExternalIDWhenNameMissing() {
	session := s.createSession("14:00", 2)
	result, err := s.engine.Join(s.ctx, model.Caller{ExternalID: "tg-99"}, session.ID)
	s.Require().NoError(err)
	s.Equal("tg-99", result.Player.FullName)
}

// Leave tests

func (s *EngineSuite) TestLeavePromotesFirstReserve() {
	session := s.createSession("14:00", 1)
	s.join(session, "X")
	s.Equal(OutcomeJoinedReserve, s.join(session, "Y").Outcome)

	result, err := s.engine.Leave(s.ctx, caller("X"), session.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeLeft, result.Outcome)
	s.Require().Len(result.Promoted, 1)
	s.Equal("Y", result.Promoted[0].FullName)

	main, reserve := s.lists(session)
	s.Equal([]string{"Y"}, main)
	s.Empty(reserve)

	result, err = s.engine.Leave(s.ctx, caller("Y"), session.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeLeft, result.Outcome)
	s.Empty(result.Promoted)

	main, reserve = s.lists(session)
	s.Empty(main)
	s.Empty(reserve)
}

func (s *EngineSuite) TestPromotionIsFIFO() {
	session := s.createSession("14:00", 1)
	s.join(session, "A")
	s.join(session, "B")
	s.join(session, "C")

	result, err := s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.Require().NoError(err)
	s.Require().Len(result.Promoted, 1)
	s.Equal("B", result.Promoted[0].FullName)

	main, reserve := s.lists(session)
	s.Equal([]string{"B"}, main)
	s.Equal([]string{"C"}, reserve)
}

func (s *EngineSuite) TestReserveLeaverDoesNotPromote() {
	session := s.createSession("14:00", 1)
	s.join(session, "A")
	s.join(session, "B")
	s.join(session, "C")

	result, err := s.engine.Leave(s.ctx, caller("B"), session.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeLeft, result.Outcome)
	s.Empty(result.Promoted)

	main, reserve := s.lists(session)
	s.Equal([]string{"A"}, main)
	s.Equal([]string{"C"}, reserve)
}

func (s *EngineSuite) TestLeaveIsIdempotent() {
	session := s.createSession("14:00", 2)
	s.join(session, "A")

	result, err := s.engine.Leave(s.ctx, caller("Stranger"), session.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeNotRegistered, result.Outcome)

	_, err = s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.Require().NoError(err)
	result, err = s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeNotRegistered, result.Outcome)
	s.Empty(result.Promoted)
}

func (s *EngineSuite) TestRejoinAfterLeaveGoesToBackOfQueue() {
	session := s.createSession("14:00", 1)
	s.join(session, "A")
	s.join(session, "B")
	_, err := s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.Require().NoError(err)

	s.Equal(OutcomeJoinedReserve, s.join(session, "A").Outcome)
	main, reserve := s.lists(session)
	s.Equal([]string{"B"}, main)
	s.Equal([]string{"A"}, reserve)
}

// conflictingStorage fails the next PromoteFirstReserve calls the way a
// lost Redis transaction does
type conflictingStorage struct {
	storage.Storage
	failures int
}

func (c *conflictingStorage) PromoteFirstReserve(ctx context.Context, sessionID model.SessionID) (*model.Player, error) {
	if c.failures > 0 {
		c.failures--
		return nil, model.ErrStoreConflict
	}
	return c.Storage.PromoteFirstReserve(ctx, sessionID)
}

// failNextPromotion makes the engine's next promotion fail after the
// registration it replaces is already deleted
func (s *EngineSuite) failNextPromotion() {
	store := &conflictingStorage{Storage: s.storage, failures: 1}
	s.engine = NewEngine(store, s.engine.auth, s.clock, s.engine.policy, testutil.NopLogger())
}

func (s *EngineSuite) TestLeaveAfterFailedPromotionRefillsMain() {
	session := s.createSession("14:00", 2)
	for _, name := range []string{"A", "B", "C", "D"} {
		s.join(session, name)
	}
	s.failNextPromotion()

	_, err := s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.ErrorIs(err, model.ErrStoreConflict)
	main, reserve := s.lists(session)
	s.Equal([]string{"B"}, main)
	s.Equal([]string{"C", "D"}, reserve)

	result, err := s.engine.Leave(s.ctx, caller("B"), session.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeLeft, result.Outcome)
	s.Require().Len(result.Promoted, 2)
	s.Equal("C", result.Promoted[0].FullName)
	s.Equal("D", result.Promoted[1].FullName)

	main, reserve = s.lists(session)
	s.Equal([]string{"C", "D"}, main)
	s.Empty(reserve)
}

func (s *EngineSuite) TestJoinAfterFailedPromotionQueuesBehindReserve() {
	session := s.createSession("14:00", 2)
	for _, name := range []string{"A", "B", "C"} {
		s.join(session, name)
	}
	s.failNextPromotion()

	_, err := s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.Require().Error(err)

	result := s.join(session, "E")
	s.Equal(OutcomeJoinedReserve, result.Outcome)
	s.Require().Len(result.Promoted, 1)
	s.Equal("C", result.Promoted[0].FullName)

	main, reserve := s.lists(session)
	s.Equal([]string{"B", "C"}, main)
	s.Equal([]string{"E"}, reserve)
}

func (s *EngineSuite) TestAddPlayersAfterFailedPromotionQueuesBehindReserve() {
	session := s.createSession("14:00", 1)
	s.join(session, "A")
	s.join(session, "B")
	s.failNextPromotion()

	_, err := s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.Require().Error(err)

	result, err := s.engine.AddPlayers(s.ctx, s.admin, session.ID, []string{"Guest"})
	s.Require().NoError(err)
	s.Require().Len(result.Promoted, 1)
	s.Equal("B", result.Promoted[0].FullName)
	s.Equal(model.StatusReserve, result.Added[0].Status)

	main, reserve := s.lists(session)
	s.Equal([]string{"B"}, main)
	s.Equal([]string{"Guest"}, reserve)
}

// Admin tests

func (s *EngineSuite) TestAddPlayersFillsThenOverflows() {
	session := s.createSession("14:00", 3)
	s.join(session, "A")

	result, err := s.engine.AddPlayers(s.ctx, s.admin, session.ID, []string{"Ivan", " Peter ", "", "Elena", "Olga"})
	s.Require().NoError(err)
	s.Require().Len(result.Added, 4)
	s.Equal(model.StatusMain, result.Added[0].Status)
	s.Equal(model.StatusMain, result.Added[1].Status)
	s.Equal(model.StatusReserve, result.Added[2].Status)
	s.Equal(model.StatusReserve, result.Added[3].Status)
	s.False(result.Added[0].Player.HasExternalID())

	main, reserve := s.lists(session)
	s.Equal([]string{"A", "Ivan", "Peter"}, main)
	s.Equal([]string{"Elena", "Olga"}, reserve)

	reg, err := s.storage.GetRegistration(s.ctx, session.ID, result.Added[0].Player.ID)
	s.Require().NoError(err)
	s.Require().NotNil(reg.Provenance)
	s.Equal(s.admin.ExternalID, reg.Provenance.ActorID)
	s.Equal("Coach", reg.Provenance.ActorName)
}

func (s *EngineSuite) TestAddPlayersValidation() {
	session := s.createSession("14:00", 3)

	_, err := s.engine.AddPlayers(s.ctx, caller("A"), session.ID, []string{"Ivan"})
	s.ErrorIs(err, model.ErrNotAdmin)

	_, err = s.engine.AddPlayers(s.ctx, s.admin, session.ID, []string{" ", ""})
	s.ErrorIs(err, model.ErrNoPlayerNames)
}

func (s *EngineSuite) TestAddPlayersCreatesDistinctNamesakes() {
	session := s.createSession("14:00", 3)
	result, err := s.engine.AddPlayers(s.ctx, s.admin, session.ID, []string{"Ivan", "Ivan"})
	s.Require().NoError(err)
	s.NotEqual(result.Added[0].Player.ID, result.Added[1].Player.ID)
}

func (s *EngineSuite) TestRemovePlayerPromotes() {
	session := s.createSession("14:00", 1)
	first := s.join(session, "A")
	s.join(session, "B")

	result, err := s.engine.RemovePlayer(s.ctx, s.admin, session.ID, first.Player.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeRemoved, result.Outcome)
	s.Require().Len(result.Promoted, 1)
	s.Equal("B", result.Promoted[0].FullName)

	result, err = s.engine.RemovePlayer(s.ctx, s.admin, session.ID, first.Player.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeNotRegistered, result.Outcome)
}

func (s *EngineSuite) TestRemovePlayerByName() {
	session := s.createSession("14:00", 1)
	_, err := s.engine.AddPlayers(s.ctx, s.admin, session.ID, []string{"Ivan", "Peter"})
	s.Require().NoError(err)

	result, err := s.engine.RemovePlayerByName(s.ctx, s.admin, session.ID, "Ivan")
	s.Require().NoError(err)
	s.Equal(OutcomeRemoved, result.Outcome)
	s.Require().Len(result.Promoted, 1)
	s.Equal("Peter", result.Promoted[0].FullName)

	result, err = s.engine.RemovePlayerByName(s.ctx, s.admin, session.ID, "Ivan")
	s.Require().NoError(err)
	s.Equal(OutcomeNotRegistered, result.Outcome)

	_, err = s.engine.RemovePlayerByName(s.ctx, caller("A"), session.ID, "Peter")
	s.ErrorIs(err, model.ErrNotAdmin)
}

func (s *EngineSuite) TestCreateSessionValidation() {
	r := model.TimeRange{Start: model.NewClockTime(14, 0), End: model.NewClockTime(16, 0)}

	_, err := s.engine.CreateSession(s.ctx, caller("A"), s.today, r, 6)
	s.ErrorIs(err, model.ErrNotAdmin)

	_, err = s.engine.CreateSession(s.ctx, s.admin, s.today, model.TimeRange{Start: r.End, End: r.Start}, 6)
	s.ErrorIs(err, model.ErrInvalidTimeRange)

	_, err = s.engine.CreateSession(s.ctx, s.admin, s.today, r, 0)
	s.ErrorIs(err, model.ErrInvalidCapacity)

	_, err = s.engine.CreateSession(s.ctx, s.admin, s.today, r, 6)
	s.Require().NoError(err)
	_, err = s.engine.CreateSession(s.ctx, s.admin, s.today, r, 6)
	s.ErrorIs(err, model.ErrSessionExists)
}

// Feature toggle tests

func (s *EngineSuite) TestDisabledRegistrationRejectsUserCommands() {
	session := s.createSession("14:00", 2)
	s.join(session, "A")

	s.Require().NoError(s.engine.SetEnabled(s.ctx, s.admin, false))
	enabled, err := s.engine.Enabled(s.ctx)
	s.Require().NoError(err)
	s.False(enabled)

	_, err = s.engine.Join(s.ctx, caller("B"), session.ID)
	s.ErrorIs(err, model.ErrServiceDisabled)
	_, err = s.engine.Leave(s.ctx, caller("A"), session.ID)
	s.ErrorIs(err, model.ErrServiceDisabled)
	_, err = s.engine.Roster(s.ctx, session.ID)
	s.ErrorIs(err, model.ErrServiceDisabled)
	_, err = s.engine.SessionsForDate(s.ctx, s.today)
	s.ErrorIs(err, model.ErrServiceDisabled)
	_, err = s.engine.FindSession(s.ctx, s.today, session.Start)
	s.ErrorIs(err, model.ErrServiceDisabled)

	main, reserve := s.lists(session)
	s.Equal([]string{"A"}, main)
	s.Empty(reserve)

	// Admin commands keep working
	_, err = s.engine.AddPlayers(s.ctx, s.admin, session.ID, []string{"Ivan"})
	s.Require().NoError(err)

	s.Require().NoError(s.engine.SetEnabled(s.ctx, s.admin, true))
	s.Equal(OutcomeJoinedReserve, s.join(session, "B").Outcome)
}

func (s *EngineSuite) TestSetEnabledRequiresAdmin() {
	s.ErrorIs(s.engine.SetEnabled(s.ctx, caller("A"), false), model.ErrNotAdmin)
}

// Same-day policy tests

func (s *EngineSuite) TestMultipleSessionsPerDayAllowedByDefault() {
	early := s.createSession("12:00", 2)
	late := s.createSession("14:00", 2)

	s.Equal(OutcomeJoinedMain, s.join(early, "A").Outcome)
	s.Equal(OutcomeJoinedMain, s.join(late, "A").Outcome)
}

func (s *EngineSuite) TestOneSessionPerDayPolicy() {
	s.withPolicy(Policy{OneSessionPerDay: true, LockTimeout: time.Second})
	early := s.createSession("12:00", 2)
	late := s.createSession("14:00", 2)

	s.Equal(OutcomeJoinedMain, s.join(early, "A").Outcome)
	result := s.join(late, "A")
	s.Equal(OutcomeRegisteredSameDay, result.Outcome)

	main, _ := s.lists(late)
	s.Empty(main)

	// Re-joining the same session is still reported as already registered
	s.Equal(OutcomeAlreadyRegistered, s.join(early, "A").Outcome)
}

// Session listing tests

func (s *EngineSuite) TestSessionsForDateAndFindSession() {
	late := s.createSession("16:00", 2)
	early := s.createSession("14:00", 2)
	s.join(early, "A")

	rosters, err := s.engine.SessionsForDate(s.ctx, s.today)
	s.Require().NoError(err)
	s.Require().Len(rosters, 2)
	s.Equal(early.ID, rosters[0].Session.ID)
	s.Len(rosters[0].Main, 1)
	s.Equal(late.ID, rosters[1].Session.ID)

	found, err := s.engine.FindSession(s.ctx, s.today, model.NewClockTime(16, 0))
	s.Require().NoError(err)
	s.Equal(late.ID, found.ID)
}

// Statistics tests

func (s *EngineSuite) TestStats() {
	session := s.createSession("14:00", 2)
	s.join(session, "A")

	stats, err := s.engine.Stats(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(1, stats.TotalSessions)
	s.Equal(1, stats.ActivePlayers)
	s.True(stats.ActiveSince.Equal(s.today.AddDate(0, -1, 0)))

	playerStats, err := s.engine.PlayerStats(s.ctx, s.admin, " A ")
	s.Require().NoError(err)
	s.Equal(1, playerStats.TotalGames)

	_, err = s.engine.Stats(s.ctx, caller("A"))
	s.ErrorIs(err, model.ErrNotAdmin)
}

// Concurrency tests

func (s *EngineSuite) TestConcurrentJoinsNeverOverbook() {
	session := s.createSession("14:00", 3)
	s.withPolicy(Policy{LockTimeout: 5 * time.Second})

	const joiners = 20
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := range joiners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.Join(s.ctx, caller(fmt.Sprintf("P%02d", i)), session.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	main, reserve := s.lists(session)
	s.Len(main, 3)
	s.Len(reserve, joiners-3)
	s.Equal(0, s.engine.locks.size())
}

func (s *EngineSuite) TestBusySessionFailsFast() {
	session := s.createSession("14:00", 3)
	s.withPolicy(Policy{LockTimeout: 20 * time.Millisecond})

	release, err := s.engine.locks.acquire(s.ctx, session.ID, time.Second)
	s.Require().NoError(err)
	defer release()

	_, err = s.engine.Join(s.ctx, caller("A"), session.ID)
	s.ErrorIs(err, model.ErrSessionBusy)

	main, _ := s.lists(session)
	s.Empty(main)
}

func (s *EngineSuite) TestLockWaitHonoursContext() {
	session := s.createSession("14:00", 3)
	release, err := s.engine.locks.acquire(s.ctx, session.ID, time.Second)
	s.Require().NoError(err)
	defer release()

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = s.engine.Join(ctx, caller("A"), session.ID)
	s.ErrorIs(err, context.Canceled)
}
