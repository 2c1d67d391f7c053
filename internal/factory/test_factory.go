package factory

import (
	"time"

	"github.com/mcoot/tabletop-bank/internal/dependencies/mocks"
	"github.com/mcoot/tabletop-bank/internal/services/auth"
	"github.com/mcoot/tabletop-bank/internal/services/bank"
	"github.com/mcoot/tabletop-bank/internal/storage/memory"
	tu "github.com/mcoot/tabletop-bank/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock   *mocks.MockClock
	MockIDs     *mocks.MockIDGenerator
	MemoryStore *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// The clock ticks one second per read so events get distinct timestamps.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewTickingClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), time.Second)
	mockIDs := mocks.NewMockIDGenerator()
	guard := auth.NewFromHash(nil, mockClock, auth.DefaultConfig())

	app := newWithDependencies(store, mockClock, mockIDs, guard, bank.Config{}, tu.NopLogger())

	return &TestApp{
		App:         app,
		MockClock:   mockClock,
		MockIDs:     mockIDs,
		MemoryStore: store,
	}
}
