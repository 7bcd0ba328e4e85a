package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionCleaner deletes expired sessions
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// ReapRecorder observes reaped sessions (metrics)
type ReapRecorder interface {
	RecordSessionsReaped(n int64)
}

// CleanupManager periodically removes expired sessions. Lookups already
// reject and delete expired sessions, so this only bounds table growth.
type CleanupManager struct {
	cleaner  SessionCleaner
	recorder ReapRecorder
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager. recorder may be nil.
func NewCleanupManager(cleaner SessionCleaner, recorder ReapRecorder, logger *slog.Logger, interval time.Duration) *CleanupManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupManager{
		cleaner:  cleaner,
		recorder: recorder,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the cleanup loop until Stop is called or ctx is cancelled
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("session cleanup stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("session cleanup context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.cleaner.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired sessions", slog.Any("error", err))
		return
	}

	if cm.recorder != nil {
		cm.recorder.RecordSessionsReaped(rowsDeleted)
	}
	if rowsDeleted > 0 {
		cm.logger.Info("expired session cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
