package commands

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/evalkit/idjoin/errors"
	"github.com/evalkit/idjoin/idset/storage"
)

// StatusCmd shows the persisted id sets and their row counts.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show materialized id sets and row counts",
	Long: `Display every persisted id set key with its row count.

Keys listed here while no evaluation is running are orphans, usually left
behind by a crashed process; 'idjoin reset' reclaims them.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	store := storage.NewRowStore(database, nil)
	counts, err := store.KeyCounts(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to query id set counts")
	}

	if len(counts) == 0 {
		pterm.Info.Println("No materialized id sets")
		return nil
	}

	rows := pterm.TableData{{"Key", "Rows"}}
	total := 0
	for _, kc := range counts {
		rows = append(rows, []string{kc.Key, fmt.Sprintf("%d", kc.Rows)})
		total += kc.Rows
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	pterm.Printf("\n%s keys, %s rows\n",
		pterm.Green(fmt.Sprintf("%d", len(counts))),
		pterm.Green(fmt.Sprintf("%d", total)),
	)
	return nil
}
