package migrations

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockVersionStore is an in-memory VersionStore. It records applied versions
// instead of executing step bodies.
type MockVersionStore struct {
	mu         sync.Mutex
	version    int64
	applied    []int64
	failAt     int64
	failErr    error
	versionErr error
}

func (m *MockVersionStore) CurrentVersion(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versionErr != nil {
		return 0, m.versionErr
	}
	return m.version, nil
}

func (m *MockVersionStore) ApplyStep(ctx context.Context, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt != 0 && step.Version == m.failAt {
		return m.failErr
	}
	m.applied = append(m.applied, step.Version)
	m.version = step.Version
	return nil
}

func noopApply(ctx context.Context, tx *sql.Tx) error { return nil }

func testSteps(n int) []Step {
	steps := make([]Step, 0, n)
	for i := 1; i <= n; i++ {
		steps = append(steps, Step{Version: int64(i), Description: "step", Apply: noopApply})
	}
	return steps
}

func newTestRunner(t *testing.T, store *MockVersionStore, n int) *Runner {
	t.Helper()
	runner, err := NewRunner(store, testSteps(n), nil)
	require.NoError(t, err)
	return runner
}

func TestRunner_CheckStatus_Current(t *testing.T) {
	store := &MockVersionStore{version: 3}
	runner := newTestRunner(t, store, 3)

	status, err := runner.CheckStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateCurrent, status.State)
	assert.False(t, status.NeedsMigration())
	assert.Empty(t, status.Pending)
}

func TestRunner_Run_CurrentIsNoOp(t *testing.T) {
	store := &MockVersionStore{version: 3}
	runner := newTestRunner(t, store, 3)

	status, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateCurrent, status.State)
	assert.Empty(t, store.applied, "no step may run when the store is current")
	assert.Equal(t, int64(3), store.version)
}

func TestRunner_Run_AheadRefused(t *testing.T) {
	store := &MockVersionStore{version: 4}
	runner := newTestRunner(t, store, 3)

	status, err := runner.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDowngrade)
	assert.Equal(t, StateAhead, status.State)
	assert.Empty(t, store.applied)
	assert.Equal(t, int64(4), store.version, "a downgrade must leave the store untouched")
}

func TestRunner_Run_BehindAppliesMissingStepOnce(t *testing.T) {
	store := &MockVersionStore{version: 2}
	runner := newTestRunner(t, store, 3)

	status, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateCurrent, status.State)
	assert.Equal(t, []int64{3}, store.applied)
	assert.Equal(t, int64(3), store.version)

	// Starting again is a no-op
	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, store.applied)
}

func TestRunner_Run_FreshAppliesAllInOrder(t *testing.T) {
	store := &MockVersionStore{}
	runner := newTestRunner(t, store, 4)

	status, err := runner.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFresh, status.State)
	assert.Len(t, status.Pending, 4)

	_, err = runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, store.applied)
	assert.Equal(t, int64(4), store.version)
}

func TestRunner_Run_StepFailureStopsAtLastCommitted(t *testing.T) {
	boom := errors.New("syntax error at or near")
	store := &MockVersionStore{version: 1, failAt: 3, failErr: boom}
	runner := newTestRunner(t, store, 4)

	_, err := runner.Run(context.Background())

	require.Error(t, err)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, int64(3), stepErr.Version)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int64{2}, store.applied, "steps after the failure must not run")
	assert.Equal(t, int64(2), store.version)
}

func TestRunner_CheckStatus_StoreError(t *testing.T) {
	store := &MockVersionStore{versionErr: errors.New("connection refused")}
	runner := newTestRunner(t, store, 2)

	_, err := runner.Run(context.Background())

	assert.Error(t, err)
	assert.Empty(t, store.applied)
}

func TestRunner_Run_VersionMismatchAfterApply(t *testing.T) {
	store := &lyingStore{}
	runner, err := NewRunner(store, testSteps(2), nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background())

	assert.Error(t, err)
}

// lyingStore accepts steps but never advances its version
type lyingStore struct{}

func (lyingStore) CurrentVersion(ctx context.Context) (int64, error) { return 0, nil }
func (lyingStore) ApplyStep(ctx context.Context, step Step) error    { return nil }

func TestNewRunner_RejectsInvalidRegistry(t *testing.T) {
	store := &MockVersionStore{}

	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"does not start at one", []Step{{Version: 2, Apply: noopApply}}},
		{"gap", []Step{{Version: 1, Apply: noopApply}, {Version: 3, Apply: noopApply}}},
		{"duplicate", []Step{{Version: 1, Apply: noopApply}, {Version: 1, Apply: noopApply}}},
		{"descending", []Step{{Version: 2, Apply: noopApply}, {Version: 1, Apply: noopApply}}},
		{"missing apply", []Step{{Version: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(store, tt.steps, nil)
			var regErr *RegistryError
			assert.True(t, errors.As(err, &regErr), "expected RegistryError, got %v", err)
		})
	}
}

func TestRegistry_IsValid(t *testing.T) {
	runner, err := NewRunner(&MockVersionStore{}, Registry(), nil)

	require.NoError(t, err)
	assert.Equal(t, ExpectedVersion(), runner.Expected())
	assert.Equal(t, int64(4), ExpectedVersion())
}
