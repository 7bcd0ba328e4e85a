package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BradenHooton/lantern/internal/config"
	"github.com/BradenHooton/lantern/internal/database"
	"github.com/BradenHooton/lantern/internal/migrations"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lantern",
	Short: "Lantern identity and session service",
	Long: `Lantern resolves request identity from trusted reverse-proxy headers or
local sessions, provisions proxy-authenticated users, and keeps its
database schema at the version this binary expects.`,
	SilenceUsage: true,
}

// Execute runs the root command. Any returned error exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

// newLogger builds the JSON logger used by every command and installs it as default
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// bootstrap loads configuration and opens the pool every command needs
func bootstrap() (*config.Config, *database.DB, *slog.Logger, error) {
	logger := newLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return nil, nil, logger, err
	}
	logger = newLogger(cfg.Server.LogLevel)

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return nil, nil, logger, err
	}

	return cfg, db, logger, nil
}

// newMigrationRunner wires the registered steps to the goose-backed store
func newMigrationRunner(cfg *config.Config, db *database.DB, logger *slog.Logger) (*migrations.Runner, *migrations.GooseStore, error) {
	store, err := migrations.NewGooseStore(db.StdlibDB(), migrations.Registry(), cfg.Migration.StatementTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open schema version store: %w", err)
	}

	runner, err := migrations.NewRunner(store, migrations.Registry(), logger)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return runner, store, nil
}
