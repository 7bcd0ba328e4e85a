// Package migrations evolves the persisted schema at startup. A Runner
// compares the version stamped in the store with the version this binary
// expects and either applies the missing steps in order, does nothing, or
// refuses to continue.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// State classifies the store relative to the running binary
type State string

const (
	StateFresh   State = "fresh"   // nothing stamped yet
	StateCurrent State = "current" // stored == expected
	StateBehind  State = "behind"  // stored < expected
	StateAhead   State = "ahead"   // stored > expected (downgrade)
)

// ErrDowngrade is returned when the store was written by a newer binary
var ErrDowngrade = errors.New("schema version is ahead of this binary (downgrade refused)")

// Step is one ordered unit of schema change, identified by the version it
// transitions to. Apply runs inside the transaction that stamps Version.
type Step struct {
	Version     int64
	Description string
	Apply       func(ctx context.Context, tx *sql.Tx) error
}

// VersionStore persists the schema version and applies steps against it
type VersionStore interface {
	// CurrentVersion returns the highest applied version, 0 when nothing is stamped
	CurrentVersion(ctx context.Context) (int64, error)
	// ApplyStep runs the step and stamps its version atomically
	ApplyStep(ctx context.Context, step Step) error
}

// StepError reports which step failed; the store stays at Version-1
type StepError struct {
	Version     int64
	Description string
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Description, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// RegistryError reports an invalid step registry
type RegistryError struct {
	Reason string
}

func (e *RegistryError) Error() string {
	return "invalid migration registry: " + e.Reason
}

// Status is the result of comparing stored and expected versions
type Status struct {
	State    State
	Stored   int64
	Expected int64
	Pending  []Step
}

// NeedsMigration reports whether Run would apply any step
func (s *Status) NeedsMigration() bool {
	return s.State == StateFresh || s.State == StateBehind
}

// Runner applies registered steps against a VersionStore
type Runner struct {
	store    VersionStore
	steps    []Step
	expected int64
	logger   *slog.Logger
}

// NewRunner validates the registry: versions must start at 1 and increase by one
func NewRunner(store VersionStore, steps []Step, logger *slog.Logger) (*Runner, error) {
	if store == nil {
		return nil, &RegistryError{Reason: "no version store"}
	}
	if len(steps) == 0 {
		return nil, &RegistryError{Reason: "no steps registered"}
	}

	ordered := make([]Step, len(steps))
	copy(ordered, steps)

	for i, step := range ordered {
		want := int64(i + 1)
		if step.Version != want {
			return nil, &RegistryError{Reason: fmt.Sprintf("step %d has version %d, want %d", i, step.Version, want)}
		}
		if step.Apply == nil {
			return nil, &RegistryError{Reason: fmt.Sprintf("step %d has no apply function", step.Version)}
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		store:    store,
		steps:    ordered,
		expected: ordered[len(ordered)-1].Version,
		logger:   logger,
	}, nil
}

// Expected returns the schema version this binary requires
func (r *Runner) Expected() int64 {
	return r.expected
}

// CheckStatus classifies the store without changing it
func (r *Runner) CheckStatus(ctx context.Context) (*Status, error) {
	stored, err := r.store.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	status := &Status{Stored: stored, Expected: r.expected}

	switch {
	case stored > r.expected:
		status.State = StateAhead
	case stored == r.expected:
		status.State = StateCurrent
	default:
		if stored <= 0 {
			status.State = StateFresh
		} else {
			status.State = StateBehind
		}
		status.Pending = r.pendingAfter(stored)
	}

	return status, nil
}

// pendingAfter returns steps stored+1..expected in ascending order
func (r *Runner) pendingAfter(stored int64) []Step {
	if stored < 0 {
		stored = 0
	}
	return r.steps[stored:]
}

// Run brings the store to the expected version. It refuses a downgrade and
// stops at the first failing step, leaving the last committed version in place.
func (r *Runner) Run(ctx context.Context) (*Status, error) {
	status, err := r.CheckStatus(ctx)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(
		slog.Int64("stored_version", status.Stored),
		slog.Int64("expected_version", status.Expected),
		slog.String("state", string(status.State)),
	)

	switch status.State {
	case StateAhead:
		logger.Error("schema version is newer than this binary; refusing to start")
		return status, fmt.Errorf("%w: stored version %d, expected %d", ErrDowngrade, status.Stored, status.Expected)
	case StateCurrent:
		logger.Info("schema is up to date")
		return status, nil
	}

	logger.Info("applying schema migrations", slog.Int("pending", len(status.Pending)))

	for _, step := range status.Pending {
		started := time.Now()
		if err := r.store.ApplyStep(ctx, step); err != nil {
			logger.Error("migration step failed",
				slog.Int64("version", step.Version),
				slog.String("description", step.Description),
				slog.Any("error", err),
			)
			return status, &StepError{Version: step.Version, Description: step.Description, Err: err}
		}
		logger.Info("migration step applied",
			slog.Int64("version", step.Version),
			slog.String("description", step.Description),
			slog.Duration("duration", time.Since(started)),
		)
	}

	after, err := r.store.CurrentVersion(ctx)
	if err != nil {
		return status, fmt.Errorf("failed to confirm schema version: %w", err)
	}
	if after != r.expected {
		return status, fmt.Errorf("schema version is %d after migration, expected %d", after, r.expected)
	}

	status.Stored = after
	status.State = StateCurrent
	status.Pending = nil

	logger.Info("schema migrations complete", slog.Int64("version", after))
	return status, nil
}
