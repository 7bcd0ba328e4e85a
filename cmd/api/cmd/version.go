package cmd

import (
	"fmt"
	"runtime"

	"github.com/BradenHooton/lantern/internal/migrations"
	"github.com/spf13/cobra"
)

// Set via -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Version:        %s\n", version)
		fmt.Fprintf(out, "Commit:         %s\n", commit)
		fmt.Fprintf(out, "Schema version: %d\n", migrations.ExpectedVersion())
		fmt.Fprintf(out, "Go version:     %s\n", runtime.Version())
	},
}
