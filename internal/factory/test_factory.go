package factory

import (
	"time"

	"github.com/lmartell/cipherduel/internal/dependencies/mocks"
	"github.com/lmartell/cipherduel/internal/notify"
	"github.com/lmartell/cipherduel/internal/services/auth"
	"github.com/lmartell/cipherduel/internal/storage/memory"
	"github.com/lmartell/cipherduel/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	notifier := notify.New(testutil.NopLogger())
	store := memory.New(mockClock, notifier)

	app := newWithDependencies(store, mockClock, mockRandom, notifier, auth.DefaultConfig())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
