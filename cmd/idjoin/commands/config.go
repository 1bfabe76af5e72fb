package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evalkit/idjoin/config"
)

// ConfigCmd groups configuration inspection commands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage idjoin configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  "Display the merged configuration after defaults, config files, and IDJOIN_ environment variables are applied.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Printf("database.path          = %s\n", cfg.Database.Path)
		fmt.Printf("idset.joining_enabled  = %t\n", cfg.IDSet.JoiningEnabled)
		fmt.Printf("log.json               = %t\n", cfg.Log.JSON)
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
}
