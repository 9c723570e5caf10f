// Package storagetest holds the behavioural suite every roster store must pass.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/dependencies/mocks"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/storage"
)

// Factory builds a fresh, empty store for one test
type Factory func(t *testing.T, clk clock.Clock) storage.Storage

// StorageSuite exercises the storage.Storage contract
type StorageSuite struct {
	suite.Suite
	factory Factory

	storage storage.Storage
	clock   *mocks.MockClock
	ctx     context.Context
	today   time.Time
}

// NewStorageSuite returns a suite that runs against stores built by factory
func NewStorageSuite(factory Factory) *StorageSuite {
	return &StorageSuite{factory: factory}
}

func (s *StorageSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	s.storage = s.factory(s.T(), s.clock)
	s.ctx = context.Background()
	s.today = model.DateOf(s.clock.Now())
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) createSession(date time.Time, start, end string, capacity int) *model.Session {
	r := model.TimeRange{Start: mustClock(start), End: mustClock(end)}
	session, err := s.storage.CreateSession(s.ctx, date, r, capacity)
	s.Require().NoError(err)
	return session
}

func (s *StorageSuite) player(name string, ext model.ExternalID) *model.Player {
	p, err := s.storage.UpsertPlayer(s.ctx, name, ext)
	s.Require().NoError(err)
	return p
}

func (s *StorageSuite) register(session *model.Session, p *model.Player, status model.Status) *model.Registration {
	s.clock.Advance(time.Second)
	reg, err := s.storage.UpsertRegistration(s.ctx, session.ID, p.ID, status, nil)
	s.Require().NoError(err)
	return reg
}

func names(entries []model.RosterEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Player.FullName)
	}
	return out
}

func mustClock(s string) model.ClockTime {
	c, err := model.ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Player tests

func (s *StorageSuite) TestUpsertPlayerIsIdempotentForExternalID() {
	first := s.player("Alice", "tg-1")
	second := s.player("Alice Renamed", "tg-1")

	s.Equal(first.ID, second.ID)
	s.Equal("Alice", second.FullName)

	byExt, err := s.storage.GetPlayerByExternalID(s.ctx, "tg-1")
	s.Require().NoError(err)
	s.Equal(first.ID, byExt.ID)
}

func (s *StorageSuite) TestNameOnlyPlayersAreDistinct() {
	a := s.player("Ivan", "")
	b := s.player("Ivan", "")

	s.NotEqual(a.ID, b.ID)
	s.False(a.HasExternalID())

	got, err := s.storage.GetPlayer(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("Ivan", got.FullName)
}

func (s *StorageSuite) TestGetPlayerNotFound() {
	_, err := s.storage.GetPlayer(s.ctx, 999)
	s.ErrorIs(err, model.ErrPlayerNotFound)

	_, err = s.storage.GetPlayerByExternalID(s.ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Session tests

func (s *StorageSuite) TestCreateAndGetSession() {
	created := s.createSession(s.today, "14:00", "16:00", 6)

	got, err := s.storage.GetSession(s.ctx, created.ID)
	s.Require().NoError(err)
	s.True(got.Date.Equal(s.today))
	s.Equal("14:00", got.Start.String())
	s.Equal("16:00", got.End.String())
	s.Equal(6, got.Capacity)
	s.Nil(got.Location)
}

func (s *StorageSuite) TestCreateSessionRejectsDuplicateStart() {
	s.createSession(s.today, "14:00", "16:00", 6)

	_, err := s.storage.CreateSession(s.ctx, s.today,
		model.TimeRange{Start: mustClock("14:00"), End: mustClock("15:00")}, 4)
	s.ErrorIs(err, model.ErrSessionExists)

	// Same start on another day is fine
	s.createSession(s.today.AddDate(0, 0, 1), "14:00", "16:00", 6)
}

func (s *StorageSuite) TestCreateSessionValidates() {
	_, err := s.storage.CreateSession(s.ctx, s.today,
		model.TimeRange{Start: mustClock("16:00"), End: mustClock("14:00")}, 6)
	s.ErrorIs(err, model.ErrInvalidTimeRange)

	_, err = s.storage.CreateSession(s.ctx, s.today,
		model.TimeRange{Start: mustClock("14:00"), End: mustClock("16:00")}, 0)
	s.ErrorIs(err, model.ErrInvalidCapacity)
}

func (s *StorageSuite) TestGetSessionNotFound() {
	_, err := s.storage.GetSession(s.ctx, 42)
	s.ErrorIs(err, model.ErrSessionNotFound)

	_, err = s.storage.GetSessionByStart(s.ctx, s.today, mustClock("09:00"))
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestSessionsForDateOrderedByStart() {
	s.createSession(s.today, "16:00", "18:00", 6)
	s.createSession(s.today, "12:00", "14:00", 6)
	s.createSession(s.today, "14:00", "16:00", 6)
	s.createSession(s.today.AddDate(0, 0, 1), "10:00", "12:00", 6)

	sessions, err := s.storage.GetSessionsForDate(s.ctx, s.today)
	s.Require().NoError(err)
	s.Require().Len(sessions, 3)
	s.Equal("12:00", sessions[0].Start.String())
	s.Equal("14:00", sessions[1].Start.String())
	s.Equal("16:00", sessions[2].Start.String())

	has, err := s.storage.HasSessionsForDate(s.ctx, s.today)
	s.Require().NoError(err)
	s.True(has)

	has, err = s.storage.HasSessionsForDate(s.ctx, s.today.AddDate(0, 0, 2))
	s.Require().NoError(err)
	s.False(has)

	byStart, err := s.storage.GetSessionByStart(s.ctx, s.today, mustClock("14:00"))
	s.Require().NoError(err)
	s.Equal(sessions[1].ID, byStart.ID)
}

func (s *StorageSuite) TestSetSessionLocation() {
	session := s.createSession(s.today, "14:00", "16:00", 6)
	loc := model.MessageLocation{ChatID: "chat-1", MessageID: "msg-1"}

	s.Require().NoError(s.storage.SetSessionLocation(s.ctx, session.ID, loc))

	got, err := s.storage.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Location)
	s.Equal(loc, *got.Location)

	s.ErrorIs(s.storage.SetSessionLocation(s.ctx, 999, loc), model.ErrSessionNotFound)
}

func (s *StorageSuite) TestDeleteSessionsBeforeRemovesRegistrations() {
	yesterday := s.today.AddDate(0, 0, -1)
	old := s.createSession(yesterday, "14:00", "16:00", 6)
	current := s.createSession(s.today, "14:00", "16:00", 6)
	alice := s.player("Alice", "tg-1")
	s.register(old, alice, model.StatusMain)
	s.register(current, alice, model.StatusMain)

	deleted, err := s.storage.DeleteSessionsBefore(s.ctx, s.today)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	_, err = s.storage.GetSession(s.ctx, old.ID)
	s.ErrorIs(err, model.ErrSessionNotFound)
	_, err = s.storage.GetRegistration(s.ctx, old.ID, alice.ID)
	s.ErrorIs(err, model.ErrRegistrationNotFound)

	ok, err := s.storage.IsRegistered(s.ctx, current.ID, alice.ID)
	s.Require().NoError(err)
	s.True(ok)

	// The purged slot can be reused
	s.createSession(yesterday, "14:00", "16:00", 6)
}

// Registration tests

func (s *StorageSuite) TestUpsertRegistrationOverwritesInPlace() {
	session := s.createSession(s.today, "14:00", "16:00", 6)
	alice := s.player("Alice", "tg-1")

	first := s.register(session, alice, model.StatusReserve)
	prov := &model.Provenance{ActorID: "admin-1", ActorName: "Admin"}
	s.clock.Advance(time.Minute)
	second, err := s.storage.UpsertRegistration(s.ctx, session.ID, alice.ID, model.StatusMain, prov)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(model.StatusMain, second.Status)

	got, err := s.storage.GetRegistration(s.ctx, session.ID, alice.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusMain, got.Status)
	s.Require().NotNil(got.Provenance)
	s.Equal(*prov, *got.Provenance)
	s.True(got.RegisteredAt.After(first.RegisteredAt))

	reserve, err := s.storage.ListReserve(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(reserve)
	main, err := s.storage.ListMain(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal([]string{"Alice"}, names(main))
}

func (s *StorageSuite) TestUpsertRegistrationRequiresSessionAndPlayer() {
	session := s.createSession(s.today, "14:00", "16:00", 6)
	alice := s.player("Alice", "tg-1")

	_, err := s.storage.UpsertRegistration(s.ctx, 999, alice.ID, model.StatusMain, nil)
	s.ErrorIs(err, model.ErrSessionNotFound)
	_, err = s.storage.UpsertRegistration(s.ctx, session.ID, 999, model.StatusMain, nil)
	s.ErrorIs(err, model.ErrPlayerNotFound)
	_, err = s.storage.UpsertRegistration(s.ctx, session.ID, alice.ID, model.Status(9), nil)
	s.ErrorIs(err, model.ErrInvalidStatus)
}

func (s *StorageSuite) TestListsOrderedByRegistrationTime() {
	session := s.createSession(s.today, "14:00", "16:00", 2)
	for _, name := range []string{"A", "B", "C", "D"} {
		status := model.StatusMain
		if name == "C" || name == "D" {
			status = model.StatusReserve
		}
		s.register(session, s.player(name, model.ExternalID("tg-"+name)), status)
	}

	main, err := s.storage.ListMain(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal([]string{"A", "B"}, names(main))

	reserve, err := s.storage.ListReserve(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal([]string{"C", "D"}, names(reserve))
}

func (s *StorageSuite) TestListsTieBreakOnRegistrationID() {
	session := s.createSession(s.today, "14:00", "16:00", 6)
	for _, name := range []string{"A", "B", "C"} {
		p := s.player(name, "")
		_, err := s.storage.UpsertRegistration(s.ctx, session.ID, p.ID, model.StatusMain, nil)
		s.Require().NoError(err)
	}

	main, err := s.storage.ListMain(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal([]string{"A", "B", "C"}, names(main))
}

func (s *StorageSuite) TestIsRegistered() {
	session := s.createSession(s.today, "14:00", "16:00", 6)
	alice := s.player("Alice", "tg-1")
	bob := s.player("Bob", "tg-2")
	s.register(session, alice, model.StatusMain)

	ok, err := s.storage.IsRegistered(s.ctx, session.ID, alice.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.storage.IsRegistered(s.ctx, session.ID, bob.ID)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.storage.IsExternalRegistered(s.ctx, session.ID, "tg-1")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.storage.IsExternalRegistered(s.ctx, session.ID, "tg-unknown")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *StorageSuite) TestRegisteredSessionsOnDate() {
	early := s.createSession(s.today, "12:00", "14:00", 6)
	late := s.createSession(s.today, "16:00", "18:00", 6)
	tomorrow := s.createSession(s.today.AddDate(0, 0, 1), "12:00", "14:00", 6)
	alice := s.player("Alice", "tg-1")
	s.register(early, alice, model.StatusMain)
	s.register(tomorrow, alice, model.StatusMain)

	ids, err := s.storage.RegisteredSessionsOnDate(s.ctx, alice.ID, s.today)
	s.Require().NoError(err)
	s.Equal([]model.SessionID{early.ID}, ids)
	s.NotContains(ids, late.ID)
}

func (s *StorageSuite) TestDeleteRegistration() {
	session := s.createSession(s.today, "14:00", "16:00", 6)
	alice := s.player("Alice", "tg-1")
	s.register(session, alice, model.StatusMain)

	deleted, err := s.storage.DeleteRegistration(s.ctx, session.ID, alice.ID)
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.storage.DeleteRegistration(s.ctx, session.ID, alice.ID)
	s.Require().NoError(err)
	s.False(deleted)

	main, err := s.storage.ListMain(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(main)
}

func (s *StorageSuite) TestDeleteRegistrationByPlayerNameRemovesMostRecent() {
	session := s.createSession(s.today, "14:00", "16:00", 6)
	first := s.player("Ivan", "")
	s.register(session, first, model.StatusMain)
	s.register(session, s.player("Peter", ""), model.StatusMain)
	second := s.player("Ivan", "")
	s.register(session, second, model.StatusMain)

	deleted, err := s.storage.DeleteRegistrationByPlayerName(s.ctx, session.ID, "Ivan")
	s.Require().NoError(err)
	s.True(deleted)

	ok, err := s.storage.IsRegistered(s.ctx, session.ID, first.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.storage.IsRegistered(s.ctx, session.ID, second.ID)
	s.Require().NoError(err)
	s.False(ok)

	deleted, err = s.storage.DeleteRegistrationByPlayerName(s.ctx, session.ID, "Nobody")
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *StorageSuite) TestPromoteFirstReserveIsFIFO() {
	session := s.createSession(s.today, "14:00", "16:00", 1)
	s.register(session, s.player("A", "tg-a"), model.StatusMain)
	s.register(session, s.player("B", "tg-b"), model.StatusReserve)
	s.register(session, s.player("C", "tg-c"), model.StatusReserve)

	promoted, err := s.storage.PromoteFirstReserve(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(promoted)
	s.Equal("B", promoted.FullName)

	reserve, err := s.storage.ListReserve(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal([]string{"C"}, names(reserve))

	promoted, err = s.storage.PromoteFirstReserve(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(promoted)
	s.Equal("C", promoted.FullName)

	promoted, err = s.storage.PromoteFirstReserve(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Nil(promoted)

	main, err := s.storage.ListMain(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal([]string{"A", "B", "C"}, names(main))
}

func (s *StorageSuite) TestConcurrentPromotionsPromoteEachReserveOnce() {
	session := s.createSession(s.today, "14:00", "16:00", 1)
	for _, name := range []string{"A", "B", "C", "D"} {
		s.register(session, s.player(name, ""), model.StatusReserve)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		promoted []string
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.storage.PromoteFirstReserve(s.ctx, session.ID)
			if err != nil || p == nil {
				return
			}
			mu.Lock()
			promoted = append(promoted, p.FullName)
			mu.Unlock()
		}()
	}
	wg.Wait()

	main, err := s.storage.ListMain(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Len(main, len(promoted))
	s.ElementsMatch(promoted, names(main))
}

// Settings tests

func (s *StorageSuite) TestFeatureDefaultsToEnabled() {
	enabled, err := s.storage.IsFeatureEnabled(s.ctx, model.FeatureRegistration)
	s.Require().NoError(err)
	s.True(enabled)

	s.Require().NoError(s.storage.SetFeatureEnabled(s.ctx, model.FeatureRegistration, false))
	enabled, err = s.storage.IsFeatureEnabled(s.ctx, model.FeatureRegistration)
	s.Require().NoError(err)
	s.False(enabled)

	s.Require().NoError(s.storage.SetFeatureEnabled(s.ctx, model.FeatureRegistration, true))
	enabled, err = s.storage.IsFeatureEnabled(s.ctx, model.FeatureRegistration)
	s.Require().NoError(err)
	s.True(enabled)
}

// Statistics tests

func (s *StorageSuite) TestPlayerStats() {
	_, err := s.storage.PlayerStats(s.ctx, "Ghost")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	alice := s.player("Alice", "tg-1")
	stats, err := s.storage.PlayerStats(s.ctx, "Alice")
	s.Require().NoError(err)
	s.Equal(0, stats.TotalGames)
	s.Nil(stats.LastGameDate)

	tomorrow := s.today.AddDate(0, 0, 1)
	s.register(s.createSession(s.today, "14:00", "16:00", 6), alice, model.StatusMain)
	s.register(s.createSession(tomorrow, "14:00", "16:00", 6), alice, model.StatusReserve)

	stats, err = s.storage.PlayerStats(s.ctx, "Alice")
	s.Require().NoError(err)
	s.Equal(2, stats.TotalGames)
	s.Require().NotNil(stats.LastGameDate)
	s.True(stats.LastGameDate.Equal(tomorrow))
}

func (s *StorageSuite) TestAggregateStats() {
	monthAgo := s.today.AddDate(0, -1, 0)
	old := s.createSession(monthAgo.AddDate(0, 0, -3), "14:00", "16:00", 6)
	recent := s.createSession(s.today, "14:00", "16:00", 6)
	s.register(old, s.player("Old Timer", "tg-old"), model.StatusMain)
	s.register(recent, s.player("Alice", "tg-1"), model.StatusMain)
	s.register(recent, s.player("Bob", ""), model.StatusReserve)
	s.player("Lurker", "tg-lurk")

	stats, err := s.storage.AggregateStats(s.ctx, monthAgo)
	s.Require().NoError(err)
	s.Equal(2, stats.TotalSessions)
	s.Equal(4, stats.TotalPlayers)
	s.Equal(2, stats.ActivePlayers)
	s.True(stats.ActiveSince.Equal(monthAgo))
}
