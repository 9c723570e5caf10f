package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Multi-key mutations run as WATCH/MULTI transactions. A transaction that
// loses a race returns model.ErrStoreConflict and is not retried here.
type Storage struct {
	client *redis.Client
	cfg    Config
	clock  clock.Clock
}

// New creates a new Redis storage instance
func New(cfg Config, clk clock.Clock) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PingTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return NewWithClient(client, cfg, clk), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clk clock.Clock) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// watch runs fn in an optimistic transaction over keys
func (s *Storage) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	err := s.client.Watch(ctx, fn, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrStoreConflict
	}
	return err
}

func (s *Storage) nextID(ctx context.Context, entity string) (int64, error) {
	return s.client.Incr(ctx, sequenceKey(entity)).Result()
}

func getJSON[T any](ctx context.Context, c redis.Cmdable, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func parseIDs[T ~int64](members []string) ([]T, error) {
	ids := make([]T, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt id %q: %w", m, err)
		}
		ids = append(ids, T(id))
	}
	return ids, nil
}

// Player operations

func (s *Storage) UpsertPlayer(ctx context.Context, fullName string, externalID model.ExternalID) (*model.Player, error) {
	player := &model.Player{
		FullName:   fullName,
		ExternalID: externalID,
		CreatedAt:  s.clock.Now(),
	}

	if externalID == "" {
		id, err := s.nextID(ctx, "player")
		if err != nil {
			return nil, err
		}
		player.ID = model.PlayerID(id)
		if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.savePlayer(ctx, pipe, player)
		}); err != nil {
			return nil, err
		}
		return player, nil
	}

	var result *model.Player
	err := s.watch(ctx, func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, externalIndexKey(externalID)).Int64()
		if err == nil {
			result, err = getJSON[model.Player](ctx, tx, playerKey(model.PlayerID(existing)), model.ErrPlayerNotFound)
			return err
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}

		id, err := s.nextID(ctx, "player")
		if err != nil {
			return err
		}
		player.ID = model.PlayerID(id)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, externalIndexKey(externalID), id, 0)
			return s.savePlayer(ctx, pipe, player)
		})
		result = player
		return err
	}, externalIndexKey(externalID))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) savePlayer(ctx context.Context, c redis.Cmdable, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}
	c.Set(ctx, playerKey(player.ID), data, 0)
	c.SAdd(ctx, playerNameIndexKey(player.FullName), int64(player.ID))
	return c.SAdd(ctx, playersKey(), int64(player.ID)).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return getJSON[model.Player](ctx, s.client, playerKey(id), model.ErrPlayerNotFound)
}

func (s *Storage) GetPlayerByExternalID(ctx context.Context, externalID model.ExternalID) (*model.Player, error) {
	id, err := s.client.Get(ctx, externalIndexKey(externalID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return s.GetPlayer(ctx, model.PlayerID(id))
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
	startKey := sessionStartKey(date, r.Start)

	var session *model.Session
	err := s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, startKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrSessionExists
		}

		id, err := s.nextID(ctx, "session")
		if err != nil {
			return err
		}
		session = &model.Session{
			ID:        model.SessionID(id),
			Date:      date,
			Start:     r.Start,
			End:       r.End,
			Capacity:  capacity,
			CreatedAt: s.clock.Now(),
		}
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, startKey, id, 0)
			pipe.Set(ctx, sessionKey(session.ID), data, 0)
			pipe.ZAdd(ctx, sessionsForDateKey(date), redis.Z{Score: float64(r.Start), Member: id})
			pipe.ZAdd(ctx, sessionsKey(), redis.Z{Score: dayNumber(date), Member: id})
			return nil
		})
		return err
	}, startKey)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return getJSON[model.Session](ctx, s.client, sessionKey(id), model.ErrSessionNotFound)
}

func (s *Storage) GetSessionByStart(ctx context.Context, date time.Time, start model.ClockTime) (*model.Session, error) {
	id, err := s.client.Get(ctx, sessionStartKey(model.DateOf(date), start)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	return s.GetSession(ctx, model.SessionID(id))
}

func (s *Storage) GetSessionsForDate(ctx context.Context, date time.Time) ([]*model.Session, error) {
	members, err := s.client.ZRange(ctx, sessionsForDateKey(model.DateOf(date)), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids, err := parseIDs[model.SessionID](members)
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrSessionNotFound) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *Storage) HasSessionsForDate(ctx context.Context, date time.Time) (bool, error) {
	n, err := s.client.ZCard(ctx, sessionsForDateKey(model.DateOf(date))).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) SetSessionLocation(ctx context.Context, id model.SessionID, loc model.MessageLocation) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		session, err := getJSON[model.Session](ctx, tx, sessionKey(id), model.ErrSessionNotFound)
		if err != nil {
			return err
		}
		session.Location = &loc
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey(id), data, 0)
			return nil
		})
		return err
	}, sessionKey(id))
}

// DeleteSessionsBefore purges each expired session in its own transaction
func (s *Storage) DeleteSessionsBefore(ctx context.Context, date time.Time) (int, error) {
	members, err := s.client.ZRangeByScore(ctx, sessionsKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(dayNumber(date), 'f', 0, 64),
	}).Result()
	if err != nil {
		return 0, err
	}
	ids, err := parseIDs[model.SessionID](members)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.deleteSession(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *Storage) deleteSession(ctx context.Context, id model.SessionID) error {
	keys := []string{sessionKey(id), listKey(id, model.StatusMain), listKey(id, model.StatusReserve)}
	return s.watch(ctx, func(tx *redis.Tx) error {
		session, err := getJSON[model.Session](ctx, tx, sessionKey(id), model.ErrSessionNotFound)
		if errors.Is(err, model.ErrSessionNotFound) {
			return tx.ZRem(ctx, sessionsKey(), int64(id)).Err()
		}
		if err != nil {
			return err
		}
		playerIDs, err := s.sessionPlayerIDs(ctx, tx, id)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, pid := range playerIDs {
				pipe.Del(ctx, registrationKey(id, pid))
				pipe.SRem(ctx, playerSessionsKey(pid), int64(id))
			}
			pipe.Del(ctx, keys...)
			pipe.Del(ctx, sessionStartKey(session.Date, session.Start))
			pipe.ZRem(ctx, sessionsForDateKey(session.Date), int64(id))
			pipe.ZRem(ctx, sessionsKey(), int64(id))
			return nil
		})
		return err
	}, keys...)
}

func (s *Storage) sessionPlayerIDs(ctx context.Context, c redis.Cmdable, id model.SessionID) ([]model.PlayerID, error) {
	var all []model.PlayerID
	for _, status := range []model.Status{model.StatusMain, model.StatusReserve} {
		members, err := c.ZRange(ctx, listKey(id, status), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		ids, err := parseIDs[model.PlayerID](members)
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
	}
	return all, nil
}

// Registration operations

func (s *Storage) UpsertRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, status model.Status, prov *model.Provenance) (*model.Registration, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := s.GetPlayer(ctx, playerID); err != nil {
		return nil, err
	}

	key := registrationKey(sessionID, playerID)
	var reg *model.Registration
	err := s.watch(ctx, func(tx *redis.Tx) error {
		existing, err := getJSON[model.Registration](ctx, tx, key, model.ErrRegistrationNotFound)
		switch {
		case err == nil:
			reg = existing
		case errors.Is(err, model.ErrRegistrationNotFound):
			id, err := s.nextID(ctx, "registration")
			if err != nil {
				return err
			}
			reg = &model.Registration{
				ID:        model.RegistrationID(id),
				SessionID: sessionID,
				PlayerID:  playerID,
			}
		default:
			return err
		}

		reg.Status = status
		reg.RegisteredAt = s.clock.Now()
		reg.Provenance = prov
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.saveRegistration(ctx, pipe, reg)
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// saveRegistration writes the registration and moves it onto its status list
func (s *Storage) saveRegistration(ctx context.Context, pipe redis.Pipeliner, reg *model.Registration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	other := model.StatusReserve
	if reg.Status == model.StatusReserve {
		other = model.StatusMain
	}
	pipe.Set(ctx, registrationKey(reg.SessionID, reg.PlayerID), data, 0)
	pipe.ZRem(ctx, listKey(reg.SessionID, other), int64(reg.PlayerID))
	pipe.ZAdd(ctx, listKey(reg.SessionID, reg.Status), redis.Z{
		Score:  float64(reg.RegisteredAt.UnixMilli()),
		Member: int64(reg.PlayerID),
	})
	pipe.SAdd(ctx, playerSessionsKey(reg.PlayerID), int64(reg.SessionID))
	return nil
}

func (s *Storage) GetRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (*model.Registration, error) {
	return getJSON[model.Registration](ctx, s.client, registrationKey(sessionID, playerID), model.ErrRegistrationNotFound)
}

func (s *Storage) ListMain(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error) {
	return s.listByStatus(ctx, s.client, sessionID, model.StatusMain)
}

func (s *Storage) ListReserve(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error) {
	return s.listByStatus(ctx, s.client, sessionID, model.StatusReserve)
}

func (s *Storage) listByStatus(ctx context.Context, c redis.Cmdable, sessionID model.SessionID, status model.Status) ([]model.RosterEntry, error) {
	members, err := c.ZRange(ctx, listKey(sessionID, status), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	ids, err := parseIDs[model.PlayerID](members)
	if err != nil {
		return nil, err
	}

	entries := make([]model.RosterEntry, 0, len(ids))
	for _, pid := range ids {
		reg, err := getJSON[model.Registration](ctx, c, registrationKey(sessionID, pid), model.ErrRegistrationNotFound)
		if err != nil {
			return nil, fmt.Errorf("load registration %d/%d: %w", sessionID, pid, err)
		}
		player, err := getJSON[model.Player](ctx, c, playerKey(pid), model.ErrPlayerNotFound)
		if err != nil {
			return nil, fmt.Errorf("load player %d: %w", pid, err)
		}
		entries = append(entries, model.RosterEntry{Player: *player, Registration: *reg})
	}
	// Scores only carry millisecond time; registration ID breaks ties.
	storage.SortEntries(entries)
	return entries, nil
}

func (s *Storage) IsRegistered(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error) {
	n, err := s.client.Exists(ctx, registrationKey(sessionID, playerID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) IsExternalRegistered(ctx context.Context, sessionID model.SessionID, externalID model.ExternalID) (bool, error) {
	player, err := s.GetPlayerByExternalID(ctx, externalID)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.IsRegistered(ctx, sessionID, player.ID)
}

func (s *Storage) RegisteredSessionsOnDate(ctx context.Context, playerID model.PlayerID, date time.Time) ([]model.SessionID, error) {
	members, err := s.client.ZRange(ctx, sessionsForDateKey(model.DateOf(date)), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	sessionIDs, err := parseIDs[model.SessionID](members)
	if err != nil {
		return nil, err
	}

	ids := []model.SessionID{}
	for _, sid := range sessionIDs {
		ok, err := s.IsRegistered(ctx, sid, playerID)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, sid)
		}
	}
	return ids, nil
}

func (s *Storage) DeleteRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error) {
	key := registrationKey(sessionID, playerID)
	deleted := false
	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil || n == 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			removeRegistration(ctx, pipe, sessionID, playerID)
			return nil
		})
		deleted = err == nil
		return err
	}, key)
	return deleted, err
}

func removeRegistration(ctx context.Context, pipe redis.Pipeliner, sessionID model.SessionID, playerID model.PlayerID) {
	pipe.Del(ctx, registrationKey(sessionID, playerID))
	pipe.ZRem(ctx, listKey(sessionID, model.StatusMain), int64(playerID))
	pipe.ZRem(ctx, listKey(sessionID, model.StatusReserve), int64(playerID))
	pipe.SRem(ctx, playerSessionsKey(playerID), int64(sessionID))
}

// DeleteRegistrationByPlayerName removes the most recent registration in the
// session whose player has the given name
func (s *Storage) DeleteRegistrationByPlayerName(ctx context.Context, sessionID model.SessionID, fullName string) (bool, error) {
	keys := []string{listKey(sessionID, model.StatusMain), listKey(sessionID, model.StatusReserve)}
	deleted := false
	err := s.watch(ctx, func(tx *redis.Tx) error {
		var latest *model.RosterEntry
		for _, status := range []model.Status{model.StatusMain, model.StatusReserve} {
			entries, err := s.listByStatus(ctx, tx, sessionID, status)
			if err != nil {
				return err
			}
			for i := range entries {
				if entries[i].Player.FullName != fullName {
					continue
				}
				if latest == nil || storage.CompareRegistrations(&entries[i].Registration, &latest.Registration) > 0 {
					latest = &entries[i]
				}
			}
		}
		if latest == nil {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			removeRegistration(ctx, pipe, sessionID, latest.Player.ID)
			return nil
		})
		deleted = err == nil
		return err
	}, keys...)
	return deleted, err
}

func (s *Storage) PromoteFirstReserve(ctx context.Context, sessionID model.SessionID) (*model.Player, error) {
	var promoted *model.Player
	err := s.watch(ctx, func(tx *redis.Tx) error {
		entries, err := s.listByStatus(ctx, tx, sessionID, model.StatusReserve)
		if err != nil || len(entries) == 0 {
			return err
		}
		first := entries[0]
		reg := first.Registration
		reg.Status = model.StatusMain
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return s.saveRegistration(ctx, pipe, &reg)
		})
		if err == nil {
			promoted = &first.Player
		}
		return err
	}, listKey(sessionID, model.StatusReserve), listKey(sessionID, model.StatusMain))
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// Settings operations

func (s *Storage) SetFeatureEnabled(ctx context.Context, feature model.Feature, enabled bool) error {
	return s.client.HSet(ctx, settingsKey(), string(feature), strconv.FormatBool(enabled)).Err()
}

func (s *Storage) IsFeatureEnabled(ctx context.Context, feature model.Feature) (bool, error) {
	value, err := s.client.HGet(ctx, settingsKey(), string(feature)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, err
	}
	return value == "true", nil
}

// Statistics operations

func (s *Storage) PlayerStats(ctx context.Context, fullName string) (*model.PlayerStats, error) {
	members, err := s.client.SMembers(ctx, playerNameIndexKey(fullName)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, model.ErrPlayerNotFound
	}
	playerIDs, err := parseIDs[model.PlayerID](members)
	if err != nil {
		return nil, err
	}

	stats := &model.PlayerStats{FullName: fullName}
	for _, pid := range playerIDs {
		sessionMembers, err := s.client.SMembers(ctx, playerSessionsKey(pid)).Result()
		if err != nil {
			return nil, err
		}
		sessionIDs, err := parseIDs[model.SessionID](sessionMembers)
		if err != nil {
			return nil, err
		}
		for _, sid := range sessionIDs {
			session, err := s.GetSession(ctx, sid)
			if errors.Is(err, model.ErrSessionNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			stats.TotalGames++
			if stats.LastGameDate == nil || session.Date.After(*stats.LastGameDate) {
				d := session.Date
				stats.LastGameDate = &d
			}
		}
	}
	return stats, nil
}

func (s *Storage) AggregateStats(ctx context.Context, activeSince time.Time) (*model.AggregateStats, error) {
	since := model.DateOf(activeSince)
	totalSessions, err := s.client.ZCard(ctx, sessionsKey()).Result()
	if err != nil {
		return nil, err
	}
	totalPlayers, err := s.client.SCard(ctx, playersKey()).Result()
	if err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeByScore(ctx, sessionsKey(), &redis.ZRangeBy{
		Min: strconv.FormatFloat(dayNumber(since), 'f', 0, 64),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	sessionIDs, err := parseIDs[model.SessionID](members)
	if err != nil {
		return nil, err
	}
	active := make(map[model.PlayerID]struct{})
	for _, sid := range sessionIDs {
		playerIDs, err := s.sessionPlayerIDs(ctx, s.client, sid)
		if err != nil {
			return nil, err
		}
		for _, pid := range playerIDs {
			active[pid] = struct{}{}
		}
	}

	return &model.AggregateStats{
		TotalSessions: int(totalSessions),
		TotalPlayers:  int(totalPlayers),
		ActivePlayers: len(active),
		ActiveSince:   since,
	}, nil
}
