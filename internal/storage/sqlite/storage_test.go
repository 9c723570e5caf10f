package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rosterbot/internal/dependencies/clock"
	"github.com/mcoot/rosterbot/internal/dependencies/mocks"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/storage"
	"github.com/mcoot/rosterbot/internal/storage/storagetest"
)

func openTempStore(t *testing.T, clk clock.Clock) *Storage {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "roster.db"), clk)
	require.NoError(t, err)
	return s
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, storagetest.NewStorageSuite(func(t *testing.T, clk clock.Clock) storage.Storage {
		return openTempStore(t, clk)
	}))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ", clock.New())
	require.Error(t, err)
}

func TestReopenKeepsDataAndSkipsAppliedMigrations(t *testing.T) {
	ctx := context.Background()
	clk := mocks.NewMockClock(time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "roster.db")

	s, err := Open(ctx, path, clk)
	require.NoError(t, err)
	session, err := s.CreateSession(ctx, clk.Now(), model.TimeRange{
		Start: model.NewClockTime(14, 0),
		End:   model.NewClockTime(16, 0),
	}, 6)
	require.NoError(t, err)
	require.NoError(t, s.SetFeatureEnabled(ctx, model.FeatureRegistration, false))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, clk)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, 6, got.Capacity)

	enabled, err := s.IsFeatureEnabled(ctx, model.FeatureRegistration)
	require.NoError(t, err)
	require.False(t, enabled)

	var applied int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+migrationTable).Scan(&applied))
	require.Equal(t, 2, applied)
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE t (id INTEGER);\n-- +migrate Down\nDROP TABLE t;\n"
	require.Equal(t, "\nCREATE TABLE t (id INTEGER);\n", extractUpMigration(content))
	require.Equal(t, "SELECT 1;", extractUpMigration("SELECT 1;"))
}
