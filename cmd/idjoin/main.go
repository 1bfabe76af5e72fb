package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evalkit/idjoin/cmd/idjoin/commands"
	"github.com/evalkit/idjoin/config"
	"github.com/evalkit/idjoin/logger"
)

var rootCmd = &cobra.Command{
	Use:   "idjoin",
	Short: "idjoin - materialized id set storage for query joins",
	Long: `idjoin - Reference-counted materialization of id sets for query joins.

Queries join against compact persisted id sets instead of embedding
thousands of literal values. This CLI inspects and maintains the backing
storage.

Available commands:
  status - Show materialized id sets and row counts
  reset  - Delete all materialized id set rows
  config - Show effective configuration
  version - Show version information

Examples:
  idjoin status            # List persisted keys with row counts
  idjoin reset             # Wipe all persisted id sets
  idjoin config show       # Print effective configuration`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := logger.InitializeWithLevel(cfg.Log.JSON, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.ResetCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
