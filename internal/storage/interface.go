package storage

import (
	"context"
	"time"

	"github.com/mcoot/rosterbot/internal/model"
)

// Storage defines the interface for roster persistence.
//
// Every mutating operation is atomic on its own. Dates are calendar days
// normalized with model.DateOf. List operations return entries ordered by
// registration time, ties broken by registration ID.
type Storage interface {
	// Player operations
	UpsertPlayer(ctx context.Context, fullName string, externalID model.ExternalID) (*model.Player, error)
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByExternalID(ctx context.Context, externalID model.ExternalID) (*model.Player, error)

	// Session operations
	CreateSession(ctx context.Context, date time.Time, r model.TimeRange, capacity int) (*model.Session, error)
	GetSession(ctx context.Context, id model.SessionID) (*model.Session, error)
	GetSessionByStart(ctx context.Context, date time.Time, start model.ClockTime) (*model.Session, error)
	GetSessionsForDate(ctx context.Context, date time.Time) ([]*model.Session, error)
	HasSessionsForDate(ctx context.Context, date time.Time) (bool, error)
	SetSessionLocation(ctx context.Context, id model.SessionID, loc model.MessageLocation) error
	DeleteSessionsBefore(ctx context.Context, date time.Time) (int, error)

	// Registration operations
	UpsertRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, status model.Status, prov *model.Provenance) (*model.Registration, error)
	GetRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (*model.Registration, error)
	ListMain(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error)
	ListReserve(ctx context.Context, sessionID model.SessionID) ([]model.RosterEntry, error)
	IsRegistered(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error)
	IsExternalRegistered(ctx context.Context, sessionID model.SessionID, externalID model.ExternalID) (bool, error)
	RegisteredSessionsOnDate(ctx context.Context, playerID model.PlayerID, date time.Time) ([]model.SessionID, error)
	DeleteRegistration(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID) (bool, error)
	DeleteRegistrationByPlayerName(ctx context.Context, sessionID model.SessionID, fullName string) (bool, error)
	PromoteFirstReserve(ctx context.Context, sessionID model.SessionID) (*model.Player, error)

	// Settings operations
	SetFeatureEnabled(ctx context.Context, feature model.Feature, enabled bool) error
	IsFeatureEnabled(ctx context.Context, feature model.Feature) (bool, error)

	// Statistics operations
	PlayerStats(ctx context.Context, fullName string) (*model.PlayerStats, error)
	AggregateStats(ctx context.Context, activeSince time.Time) (*model.AggregateStats, error)

	Close() error
}
