package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type MockSessionCleaner struct {
	mu          sync.Mutex
	calls       int
	CleanupFunc func(ctx context.Context) (int64, error)
}

func (m *MockSessionCleaner) CleanupExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.CleanupFunc != nil {
		return m.CleanupFunc(ctx)
	}
	return 0, nil
}

func (m *MockSessionCleaner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type reapCounter struct {
	mu    sync.Mutex
	total int64
}

func (r *reapCounter) RecordSessionsReaped(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total += n
}

func TestCleanupManager_RunsImmediatelyAndOnTick(t *testing.T) {
	cleaner := &MockSessionCleaner{CleanupFunc: func(ctx context.Context) (int64, error) { return 2, nil }}
	counter := &reapCounter{}
	cm := NewCleanupManager(cleaner, counter, slog.Default(), 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.Calls() >= 3 }, time.Second, 5*time.Millisecond)
	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}

	counter.mu.Lock()
	defer counter.mu.Unlock()
	assert.GreaterOrEqual(t, counter.total, int64(6))
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cleaner := &MockSessionCleaner{}
	cm := NewCleanupManager(cleaner, nil, slog.Default(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager ignored cancellation")
	}
}

func TestCleanupManager_ErrorsDoNotStopLoop(t *testing.T) {
	cleaner := &MockSessionCleaner{CleanupFunc: func(ctx context.Context) (int64, error) {
		return 0, errors.New("database unavailable")
	}}
	cm := NewCleanupManager(cleaner, nil, slog.Default(), 10*time.Millisecond)

	go cm.Start(context.Background())
	defer cm.Stop()

	assert.Eventually(t, func() bool { return cleaner.Calls() >= 2 }, time.Second, 5*time.Millisecond)
}
