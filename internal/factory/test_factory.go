package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamerelay/internal/broker"
	"github.com/mcoot/gamerelay/internal/dependencies/mocks"
	"github.com/mcoot/gamerelay/internal/metrics"
	"github.com/mcoot/gamerelay/internal/model"
	"github.com/mcoot/gamerelay/internal/placement"
	"github.com/mcoot/gamerelay/internal/services/tokens"
	"github.com/mcoot/gamerelay/internal/services/users"
	"github.com/mcoot/gamerelay/internal/storage/memory"
	"github.com/mcoot/gamerelay/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an in-memory App with mocked clock and randomness that
// places games on servers
func NewTestApp(servers ...model.Server) (*TestApp, error) {
	logger := testutil.NopLogger()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	tokenManager, err := tokens.New(tokens.DefaultConfig(), mockClock, mockRandom, logger)
	if err != nil {
		return nil, err
	}
	userManager, err := users.New(users.Config{ExpungeTriggerRatio: 1, BcryptCost: bcrypt.MinCost}, mockClock, mockRandom, logger)
	if err != nil {
		return nil, err
	}

	app := newWithDependencies(
		memory.New(), mockClock, mockRandom,
		tokenManager, userManager,
		placement.NewPool(servers...), broker.New(nil, logger),
		metrics.New(), logger,
	)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}, nil
}

// IssueToken creates a token valid for an hour holding perms
func (t *TestApp) IssueToken(perms ...string) (model.Token, error) {
	return t.TokenManager.CreateToken(time.Hour, model.NewPermissions(perms...), "test", false)
}
