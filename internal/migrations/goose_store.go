package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/pressly/goose/v3/lock"
)

// GooseStore keeps the schema version in goose's version table and applies
// each step as a goose Go migration in its own transaction. A Postgres
// advisory lock serializes steps when several processes share the store.
// Reading the version takes no lock and never creates the version table.
type GooseStore struct {
	db               *sql.DB
	versions         database.StoreExtender
	provider         *goose.Provider
	statementTimeout time.Duration
}

var _ VersionStore = (*GooseStore)(nil)

// NewGooseStore registers steps with a goose provider over db.
// The provider owns db; Close releases it.
func NewGooseStore(db *sql.DB, steps []Step, statementTimeout time.Duration) (*GooseStore, error) {
	if statementTimeout <= 0 {
		return nil, fmt.Errorf("statement timeout must be positive, got %s", statementTimeout)
	}

	gooseMigrations := make([]*goose.Migration, 0, len(steps))
	for _, step := range steps {
		up := &goose.GoFunc{RunTx: withStatementTimeout(step.Apply, statementTimeout)}
		gooseMigrations = append(gooseMigrations, goose.NewGoMigration(step.Version, up, nil))
	}

	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, fmt.Errorf("failed to create migration lock: %w", err)
	}

	store, err := database.NewStore(database.DialectPostgres, goose.DefaultTablename)
	if err != nil {
		return nil, fmt.Errorf("failed to create version store: %w", err)
	}
	versions, ok := store.(database.StoreExtender)
	if !ok {
		return nil, fmt.Errorf("version store for %s cannot check table existence", database.DialectPostgres)
	}

	provider, err := goose.NewProvider(goose.DialectCustom, db, nil,
		goose.WithStore(store),
		goose.WithGoMigrations(gooseMigrations...),
		goose.WithDisableGlobalRegistry(true),
		goose.WithSessionLocker(locker),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return &GooseStore{db: db, versions: versions, provider: provider, statementTimeout: statementTimeout}, nil
}

// CurrentVersion reads the highest stamped version straight from the version
// table. A missing table or an empty one is version 0.
func (s *GooseStore) CurrentVersion(ctx context.Context) (int64, error) {
	exists, err := s.versions.TableExists(ctx, s.db)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	version, err := s.versions.GetLatestVersion(ctx, s.db)
	if errors.Is(err, database.ErrVersionNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// ApplyStep applies exactly one version. A version already applied by a
// concurrent process counts as success.
func (s *GooseStore) ApplyStep(ctx context.Context, step Step) error {
	_, err := s.provider.ApplyVersion(ctx, step.Version, true)
	if errors.Is(err, goose.ErrAlreadyApplied) {
		return nil
	}
	return err
}

func (s *GooseStore) Close() error {
	return s.provider.Close()
}

// withStatementTimeout bounds a step both server-side and client-side so a
// pathological statement fails with a diagnostic instead of hanging startup.
func withStatementTimeout(apply func(context.Context, *sql.Tx) error, timeout time.Duration) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set statement timeout: %w", err)
		}

		return apply(ctx, tx)
	}
}
