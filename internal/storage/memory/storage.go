package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu    sync.RWMutex
	clock clock.Clock

	players       map[model.PlayerID]*model.Player
	externalIndex map[model.ExternalID]model.PlayerID
	sessions      map[model.SessionID]*model.Session
	startIndex    map[startKey]model.SessionID
	registrations map[registrationKey]*model.Registration
	settings      map[model.Feature]bool

	nextPlayerID       model.PlayerID
	nextSessionID      model.SessionID
	nextRegistrationID model.RegistrationID
}

type startKey struct {
	date  string
	start model.ClockTime
}

type registrationKey struct {
	sessionID model.SessionID
	playerID  model.PlayerID
}

// New creates a new in-memory storage instance
func New(clk clock.Clock) *Storage {
	return &Storage{
		clock:         clk,
		players:       make(map[model.PlayerID]*model.Player),
		externalIndex: make(map[model.ExternalID]model.PlayerID),
		sessions:      make(map[model.SessionID]*model.Session),
		startIndex:    make(map[startKey]model.SessionID),
		registrations: make(map[registrationKey]*model.Registration),
		settings:      make(map[model.Feature]bool),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Close is a no-op for the in-memory store
func (s *Storage) Close() error {
	return nil
}

// Player operations

func (s *Storage) UpsertPlayer(ctx context.Context, fullName string, externalID model.ExternalID) (*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if externalID != "" {
		if id, ok := s.externalIndex[externalID]; ok {
			p := *s.players[id]
			return &p, nil
		}
	}

	s.nextPlayerID++
	player := &model.Player{
		ID:         s.nextPlayerID,
		FullName:   fullName,
		ExternalID: externalID,
		CreatedAt:  s.clock.Now(),
	}
	s.players[player.ID] = player
	if externalID != "" {
		s.externalIndex[externalID] = player.ID
	}
	p := *player
	return &p, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

func (s *Storage) GetPlayerByExternalID(ctx context.Context, externalID model.ExternalID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.externalIndex[externalID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *s.players[id]
	return &p, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, date time.Time, r model.TimeRange, capacity int) (*model.Session, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, model.ErrInvalidCapacity
	}
	date = model.DateOf(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := startKey{date: model.FormatDate(date), start: r.Start}
	if _, exists := s.startIndex[key]; exists {
		return nil, model.ErrSessionExists
	}

	s.nextSessionID++
	session := &model.Session{
		ID:        s.nextSessionID,
		Date:      date,
		Start:     r.Start,
		End:       r.End,
		Capacity:  capacity,
		CreatedAt: s.clock.Now(),
	}
	s.sessions[session.ID] = session
	s.startIndex[key] = session.ID
	return copySession(session), nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return copySession(session), nil
}

func (s *Storage) GetSessionByStart(ctx context.Context, date time.Time, start model.ClockTime) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.startIndex[startKey{date: model.FormatDate(model.DateOf(date)), start: start}]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return copySession(s.sessions[id]), nil
}

func (s *Storage) GetSessionsForDate(ctx context.Context, date time.Time) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = model.DateOf(date)

	var sessions []*model.Session
	for _, session := range s.sessions {
		if session.Date.Equal(date) {
			sessions = append(sessions, copySession(session))
		}
	}
	slices.SortFunc(sessions, func(a, b *model.Session) int {
		return int(a.Start - b.Start)
	})
	return sessions, nil
}

func (s *Storage) HasSessionsForDate(ctx context.Context, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = model.DateOf(date)
	for _, session := range s.sessions {
		if session.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Storage) SetSessionLocation(ctx context.Context, id model.SessionID, loc model.MessageLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	session.Location = &loc
	return nil
}

func (s *Storage) DeleteSessionsBefore(ctx context.Context, date time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date = model.DateOf(date)

	deleted := 0
	for id, session := range s.sessions {
		if !session.Date.Before(date) {
			continue
		}
		for key := range s.registrations {
			if key.sessionID == id {
				delete(s.registrations, key)
			}
		}
		delete(s.startIndex, startKey{date: model.FormatDate(session.Date), start: session.Start})
		delete(s.sessions, id)
		deleted++
	}
	return deleted, nil
}

// Registration operations

func (s *Storage) UpsertRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, status model.Status, prov *model.Provenance) (*model.Registration, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, model.ErrSessionNotFound
	}
	if _, ok := s.players[playerID]; !ok {
		return nil, model.ErrPlayerNotFound
	}

	key := registrationKey{sessionID: sessionID, playerID: playerID}
	reg, ok := s.registrations[key]
	if !ok {
		s.nextRegistrationID++
		reg = &model.Registration{
			ID:        s.nextRegistrationID,
			SessionID: sessionID,
			PlayerID:  playerID,
		}
		s.registrations[key] = reg
	}
	reg.Status = status
	reg.RegisteredAt = s.clock.Now()
	reg.Provenance = copyProvenance(prov)
	return copyRegistration(reg), nil
}

func (s *Storage) GetRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registrations[registrationKey{sessionID: sessionID, playerID: playerID}]
	if !ok {
		return nil, model.ErrRegistrationNotFound
	}
	return copyRegistration(reg), nil
}

func (s *Storage) ListMain(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error) {
	return s.listByStatus(sessionID, model.StatusMain), nil
}

func (s *Storage) ListReserve(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error) {
	return s.listByStatus(sessionID, model.StatusReserve), nil
}

func (s *Storage) listByStatus(sessionID model.SessionID, status model.Status) []model.RosterEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []model.RosterEntry{}
	for key, reg := range s.registrations {
		if key.sessionID != sessionID || reg.Status != status {
			continue
		}
		entries = append(entries, model.RosterEntry{
			Player:       *s.players[key.playerID],
			Registration: *copyRegistration(reg),
		})
	}
	storage.SortEntries(entries)
	return entries
}

func (s *Storage) IsRegistered(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registrations[registrationKey{sessionID: sessionID, playerID: playerID}]
	return ok, nil
}

func (s *Storage) IsExternalRegistered(ctx context.Context, sessionID model.SessionID, externalID model.ExternalID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.externalIndex[externalID]
	if !ok {
		return false, nil
	}
	_, ok = s.registrations[registrationKey{sessionID: sessionID, playerID: id}]
	return ok, nil
}

func (s *Storage) RegisteredSessionsOnDate(ctx context.Context, playerID model.PlayerID, date time.Time) ([]model.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = model.DateOf(date)

	ids := []model.SessionID{}
	for key := range s.registrations {
		if key.playerID != playerID {
			continue
		}
		if session, ok := s.sessions[key.sessionID]; ok && session.Date.Equal(date) {
			ids = append(ids, key.sessionID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Storage) DeleteRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := registrationKey{sessionID: sessionID, playerID: playerID}
	if _, ok := s.registrations[key]; !ok {
		return false, nil
	}
	delete(s.registrations, key)
	return true, nil
}

// DeleteRegistrationByPlayerName removes the most recent registration in the
// session whose player has the given name
func (s *Storage) DeleteRegistrationByPlayerName(ctx context.Context, sessionID model.SessionID, fullName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *model.Registration
	for key, reg := range s.registrations {
		if key.sessionID != sessionID || s.players[key.playerID].FullName != fullName {
			continue
		}
		if latest == nil || storage.CompareRegistrations(reg, latest) > 0 {
			latest = reg
		}
	}
	if latest == nil {
		return false, nil
	}
	delete(s.registrations, registrationKey{sessionID: sessionID, playerID: latest.PlayerID})
	return true, nil
}

func (s *Storage) PromoteFirstReserve(ctx context.Context, sessionID model.SessionID) (*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var first *model.Registration
	for key, reg := range s.registrations {
		if key.sessionID != sessionID || reg.Status != model.StatusReserve {
			continue
		}
		if first == nil || storage.CompareRegistrations(reg, first) < 0 {
			first = reg
		}
	}
	if first == nil {
		return nil, nil
	}
	first.Status = model.StatusMain
	p := *s.players[first.PlayerID]
	return &p, nil
}

// Settings operations

func (s *Storage) SetFeatureEnabled(ctx context.Context, feature model.Feature, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[feature] = enabled
	return nil
}

func (s *Storage) IsFeatureEnabled(ctx context.Context, feature model.Feature) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.settings[feature]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

// Statistics operations

func (s *Storage) PlayerStats(ctx context.Context, fullName string) (*model.PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := false
	for _, p := range s.players {
		if p.FullName == fullName {
			found = true
			break
		}
	}
	if !found {
		return nil, model.ErrPlayerNotFound
	}

	stats := &model.PlayerStats{FullName: fullName}
	for key := range s.registrations {
		if s.players[key.playerID].FullName != fullName {
			continue
		}
		stats.TotalGames++
		date := s.sessions[key.sessionID].Date
		if stats.LastGameDate == nil || date.After(*stats.LastGameDate) {
			stats.LastGameDate = &date
		}
	}
	return stats, nil
}

func (s *Storage) AggregateStats(ctx context.Context, activeSince time.Time) (*model.AggregateStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	since := model.DateOf(activeSince)

	active := make(map[model.PlayerID]struct{})
	for key := range s.registrations {
		if !s.sessions[key.sessionID].Date.Before(since) {
			active[key.playerID] = struct{}{}
		}
	}
	return &model.AggregateStats{
		TotalSessions: len(s.sessions),
		TotalPlayers:  len(s.players),
		ActivePlayers: len(active),
		ActiveSince:   since,
	}, nil
}

func copySession(session *model.Session) *model.Session {
	c := *session
	if session.Location != nil {
		loc := *session.Location
		c.Location = &loc
	}
	return &c
}

func copyRegistration(reg *model.Registration) *model.Registration {
	c := *reg
	c.Provenance = copyProvenance(reg.Provenance)
	return &c
}

func copyProvenance(prov *model.Provenance) *model.Provenance {
	if prov == nil {
		return nil
	}
	c := *prov
	return &c
}
