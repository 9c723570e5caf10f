package factory

import (
	"time"

	"github.com/mcoot/rosterbot/internal/dependencies/mocks"
	"github.com/mcoot/rosterbot/internal/model"
	"github.com/mcoot/rosterbot/internal/services/auth"
	"github.com/mcoot/rosterbot/internal/services/schedule"
	"github.com/mcoot/rosterbot/internal/storage/memory"
	"github.com/mcoot/rosterbot/internal/testutil"
)

// Identities configured on every TestApp
const (
	TestAdminID   model.ExternalID = "admin-1"
	TestAdminName                  = "Coach"
	TestChatID                     = "chat-main"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App on in-memory storage with mocked time and IDs.
// The clock starts on Monday 2026-06-01 at 10:00 UTC.
func NewTestApp() *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	store := memory.New(mockClock)

	authCfg := auth.DefaultConfig()
	authCfg.AdminIDs = []model.ExternalID{TestAdminID}
	runnerCfg := schedule.DefaultRunnerConfig()
	runnerCfg.ChatID = TestChatID

	app, err := newWithDependencies(store, mockClock, mockRandom, Config{
		AuthConfig:   authCfg,
		RunnerConfig: runnerCfg,
		WebBoard:     true,
	}, testutil.NopLogger())
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}

// Admin returns the configured administrator as a caller
func (t *TestApp) Admin() model.Caller {
	return model.Caller{ExternalID: TestAdminID, Name: TestAdminName, ChatID: TestChatID}
}
