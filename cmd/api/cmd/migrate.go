package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/lantern/internal/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect or apply database schema migrations",
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored and expected schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer db.Close()

		runner, store, err := newMigrationRunner(cfg, db, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		status, err := runner.CheckStatus(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "state:    %s\n", status.State)
		fmt.Fprintf(out, "stored:   %d\n", status.Stored)
		fmt.Fprintf(out, "expected: %d\n", status.Expected)
		for _, step := range status.Pending {
			fmt.Fprintf(out, "pending:  %d %s\n", step.Version, step.Description)
		}
		return nil
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer db.Close()

		runner, store, err := newMigrationRunner(cfg, db, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		_, err = runMigrations(cmd.Context(), runner, logger)
		return err
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd, migrateUpCmd)
}

// runMigrations brings the schema to the expected version, logging why it refused or failed
func runMigrations(ctx context.Context, runner *migrations.Runner, logger *slog.Logger) (*migrations.Status, error) {
	status, err := runner.Run(ctx)
	if err != nil {
		logger.Error("schema migration failed; exiting", slog.Any("error", err))
		return status, err
	}
	return status, nil
}
