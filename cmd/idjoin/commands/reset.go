package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/evalkit/idjoin/errors"
	"github.com/evalkit/idjoin/idset/storage"
)

// ResetCmd deletes every persisted id set row.
var ResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all materialized id set rows",
	Long: `Delete the persisted rows of every materialized id set.

Run this between evaluation sessions or after a crash to reclaim storage.
Never run it while an evaluation is in flight: live references would point
at deleted rows.`,
	RunE: runReset,
}

var resetForceFlag bool

func init() {
	ResetCmd.Flags().BoolVarP(&resetForceFlag, "force", "f", false, "Skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetForceFlag {
		confirmed, err := pterm.DefaultInteractiveConfirm.Show("Delete all materialized id set rows?")
		if err != nil {
			return err
		}
		if !confirmed {
			pterm.Info.Println("Reset cancelled")
			return nil
		}
	}

	database, err := openDatabase()
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	store := storage.NewRowStore(database, nil)
	if err := store.DeleteAll(context.Background()); err != nil {
		return errors.Wrap(err, "failed to reset id sets")
	}

	pterm.Success.Println("All materialized id set rows deleted")
	return nil
}
