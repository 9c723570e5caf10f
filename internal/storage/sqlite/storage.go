// Package sqlite provides a SQLite-backed roster store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/storage"
	"github.com/mcoot/rosterbot/internal/storage/sqlite/migrations"
)

const dsnOptions = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Storage persists the roster in a single SQLite database file
type Storage struct {
	db    *sql.DB
	clock clock.Clock
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Open opens the database at path and applies embedded migrations
func Open(ctx context.Context, path string, clk clock.Clock) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers, so single statements are atomic
	// against each other without relying on busy retries.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Storage{db: db, clock: clk}, nil
}

// Close closes the database handle
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullString[T ~string](v T) sql.NullString {
	return sql.NullString{String: string(v), Valid: v != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Player operations

const playerColumns = `id, full_name, external_id, created_at`

func scanPlayer(row rowScanner) (*model.Player, error) {
	var (
		p         model.Player
		external  sql.NullString
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.FullName, &external, &createdAt); err != nil {
		return nil, err
	}
	p.ExternalID = model.ExternalID(external.String)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func (s *Storage) UpsertPlayer(ctx context.Context, fullName string, externalID model.ExternalID) (*model.Player, error) {
	now := toMillis(s.clock.Now())
	if externalID == "" {
		row := s.db.QueryRowContext(ctx,
			`INSERT INTO players (full_name, external_id, created_at) VALUES (?, NULL, ?) RETURNING `+playerColumns,
			fullName, now)
		p, err := scanPlayer(row)
		if err != nil {
			return nil, fmt.Errorf("insert player: %w", err)
		}
		return p, nil
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO players (full_name, external_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (external_id) DO NOTHING`,
		fullName, string(externalID), now); err != nil {
		return nil, fmt.Errorf("upsert player: %w", err)
	}
	return s.GetPlayerByExternalID(ctx, externalID)
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

func (s *Storage) GetPlayerByExternalID(ctx context.Context, externalID model.ExternalID) (*model.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE external_id = ?`, string(externalID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player by external id: %w", err)
	}
	return p, nil
}

// Session operations

const sessionColumns = `id, date, time_start, time_end, max_players, chat_id, message_id, created_at`

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		session   model.Session
		date      string
		chatID    sql.NullString
		messageID sql.NullString
		createdAt int64
	)
	if err := row.Scan(&session.ID, &date, &session.Start, &session.End, &session.Capacity,
		&chatID, &messageID, &createdAt); err != nil {
		return nil, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, err
	}
	session.Date = d
	session.CreatedAt = fromMillis(createdAt)
	if chatID.Valid && messageID.Valid {
		session.Location = &model.MessageLocation{ChatID: chatID.String, MessageID: messageID.String}
	}
	return &session, nil
}

func (s *Storage) CreateSession(ctx context.Context, date time.Time, r model.TimeRange, capacity int) (*model.Session, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, model.ErrInvalidCapacity
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (date, time_start, time_end, max_players, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING `+sessionColumns,
		model.FormatDate(model.DateOf(date)), int(r.Start), int(r.End), capacity, toMillis(s.clock.Now()))
	session, err := scanSession(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrSessionExists
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *Storage) GetSessionByStart(ctx context.Context, date time.Time, start model.ClockTime) (*model.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE date = ? AND time_start = ?`,
		model.FormatDate(model.DateOf(date)), int(start)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session by start: %w", err)
	}
	return session, nil
}

func (s *Storage) GetSessionsForDate(ctx context.Context, date time.Time) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE date = ? ORDER BY time_start`,
		model.FormatDate(model.DateOf(date)))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Storage) HasSessionsForDate(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE date = ?)`,
		model.FormatDate(model.DateOf(date))).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sessions for date: %w", err)
	}
	return exists, nil
}

func (s *Storage) SetSessionLocation(ctx context.Context, id model.SessionID, loc model.MessageLocation) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET chat_id = ?, message_id = ? WHERE id = ?`,
		loc.ChatID, loc.MessageID, id)
	if err != nil {
		return fmt.Errorf("set session location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

func (s *Storage) DeleteSessionsBefore(ctx context.Context, date time.Time) (int, error) {
	cutoff := model.FormatDate(model.DateOf(date))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM registrations WHERE session_id IN (SELECT id FROM sessions WHERE date < ?)`,
		cutoff); err != nil {
		return 0, fmt.Errorf("purge registrations: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return int(n), nil
}

// Registration operations

const (
	registrationFields  = `id, session_id, player_id, status, registered_at, actor_id, actor_name`
	registrationColumns = `r.id, r.session_id, r.player_id, r.status, r.registered_at, r.actor_id, r.actor_name`
)

func scanRegistration(row rowScanner, extra ...any) (*model.Registration, error) {
	var (
		reg          model.Registration
		status       string
		registeredAt int64
		actorID      sql.NullString
		actorName    sql.NullString
	)
	dest := append([]any{&reg.ID, &reg.SessionID, &reg.PlayerID, &status, &registeredAt, &actorID, &actorName}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	parsed, err := model.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	reg.Status = parsed
	reg.RegisteredAt = fromMillis(registeredAt)
	if actorID.Valid || actorName.Valid {
		reg.Provenance = &model.Provenance{
			ActorID:   model.ExternalID(actorID.String),
			ActorName: actorName.String,
		}
	}
	return &reg, nil
}

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

	var actorID, actorName sql.NullString
	if prov != nil {
		actorID = nullString(prov.ActorID)
		actorName = nullString(prov.ActorName)
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO registrations (session_id, player_id, status, registered_at, actor_id, actor_name)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_id, player_id) DO UPDATE SET
		   status = excluded.status,
		   registered_at = excluded.registered_at,
		   actor_id = excluded.actor_id,
		   actor_name = excluded.actor_name
		 RETURNING `+registrationFields,
		sessionID, playerID, status.String(), toMillis(s.clock.Now()), actorID, actorName)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("upsert registration: %w", err)
	}
	return reg, nil
}

func (s *Storage) GetRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (*model.Registration, error) {
	reg, err := scanRegistration(s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations r WHERE r.session_id = ? AND r.player_id = ?`,
		sessionID, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *Storage) ListMain(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error) {
	return s.listByStatus(ctx, sessionID, model.StatusMain)
}

func (s *Storage) ListReserve(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error) {
	return s.listByStatus(ctx, sessionID, model.StatusReserve)
}

func (s *Storage) listByStatus(ctx context.Context, sessionID model.SessionID, status model.Status) ([]model.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+registrationColumns+`, p.full_name, p.external_id, p.created_at
		 FROM registrations r JOIN players p ON p.id = r.player_id
		 WHERE r.session_id = ? AND r.status = ?
		 ORDER BY r.registered_at, r.id`,
		sessionID, status.String())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", status, err)
	}
	defer rows.Close()

	entries := []model.RosterEntry{}
	for rows.Next() {
		var (
			fullName  string
			external  sql.NullString
			createdAt int64
		)
		reg, err := scanRegistration(rows, &fullName, &external, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		entries = append(entries, model.RosterEntry{
			Player: model.Player{
				ID:         reg.PlayerID,
				FullName:   fullName,
				ExternalID: model.ExternalID(external.String),
				CreatedAt:  fromMillis(createdAt),
			},
			Registration: *reg,
		})
	}
	return entries, rows.Err()
}

func (s *Storage) IsRegistered(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE session_id = ? AND player_id = ?)`,
		sessionID, playerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

func (s *Storage) IsExternalRegistered(ctx context.Context, sessionID model.SessionID, externalID model.ExternalID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM registrations r JOIN players p ON p.id = r.player_id
		   WHERE r.session_id = ? AND p.external_id = ?)`,
		sessionID, string(externalID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration by external id: %w", err)
	}
	return exists, nil
}

func (s *Storage) RegisteredSessionsOnDate(ctx context.Context, playerID model.PlayerID, date time.Time) ([]model.SessionID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id FROM registrations r JOIN sessions s ON s.id = r.session_id
		 WHERE r.player_id = ? AND s.date = ? ORDER BY s.id`,
		playerID, model.FormatDate(model.DateOf(date)))
	if err != nil {
		return nil, fmt.Errorf("list sessions for player: %w", err)
	}
	defer rows.Close()

	ids := []model.SessionID{}
	for rows.Next() {
		var id model.SessionID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Storage) DeleteRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE session_id = ? AND player_id = ?`, sessionID, playerID)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteRegistrationByPlayerName removes the most recent registration in the
// session whose player has the given name
func (s *Storage) DeleteRegistrationByPlayerName(ctx context.Context, sessionID model.SessionID, fullName string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE id = (
		   SELECT r.id FROM registrations r JOIN players p ON p.id = r.player_id
		   WHERE r.session_id = ? AND p.full_name = ?
		   ORDER BY r.registered_at DESC, r.id DESC LIMIT 1)`,
		sessionID, fullName)
	if err != nil {
		return false, fmt.Errorf("delete registration by name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) PromoteFirstReserve(ctx context.Context, sessionID model.SessionID) (*model.Player, error) {
	var playerID model.PlayerID
	err := s.db.QueryRowContext(ctx,
		`UPDATE registrations SET status = 'main' WHERE id = (
		   SELECT id FROM registrations
		   WHERE session_id = ? AND status = 'reserve'
		   ORDER BY registered_at, id LIMIT 1)
		 RETURNING player_id`,
		sessionID).Scan(&playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("promote reserve: %w", err)
	}
	return s.GetPlayer(ctx, playerID)
}

// Settings operations

func (s *Storage) SetFeatureEnabled(ctx context.Context, feature model.Feature, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		string(feature), value)
	if err != nil {
		return fmt.Errorf("set feature %s: %w", feature, err)
	}
	return nil
}

func (s *Storage) IsFeatureEnabled(ctx context.Context, feature model.Feature) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, string(feature)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get feature %s: %w", feature, err)
	}
	return value == "true", nil
}

// Statistics operations

func (s *Storage) PlayerStats(ctx context.Context, fullName string) (*model.PlayerStats, error) {
	var players int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM players WHERE full_name = ?`, fullName).Scan(&players); err != nil {
		return nil, fmt.Errorf("count players: %w", err)
	}
	if players == 0 {
		return nil, model.ErrPlayerNotFound
	}

	var (
		stats    = &model.PlayerStats{FullName: fullName}
		lastDate sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(r.id), MAX(s.date)
		 FROM registrations r
		 JOIN players p ON p.id = r.player_id
		 JOIN sessions s ON s.id = r.session_id
		 WHERE p.full_name = ?`,
		fullName).Scan(&stats.TotalGames, &lastDate)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	if lastDate.Valid {
		d, err := model.ParseDate(lastDate.String)
		if err != nil {
			return nil, err
		}
		stats.LastGameDate = &d
	}
	return stats, nil
}

func (s *Storage) AggregateStats(ctx context.Context, activeSince time.Time) (*model.AggregateStats, error) {
	since := model.DateOf(activeSince)
	stats := &model.AggregateStats{ActiveSince: since}
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM sessions),
		   (SELECT COUNT(*) FROM players),
		   (SELECT COUNT(DISTINCT r.player_id)
		      FROM registrations r JOIN sessions s ON s.id = r.session_id
		      WHERE s.date >= ?)`,
		model.FormatDate(since)).Scan(&stats.TotalSessions, &stats.TotalPlayers, &stats.ActivePlayers)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	return stats, nil
}
