package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
)

var resetAll bool

// resetCmd clears import state.
var resetCmd = &cobra.Command{
	Use:   "reset [mutation-id...]",
	Short: "Reset import history",
	Long: `Reset the import history so mutations are imported again.

With mutation IDs, the history rows of those failed or skipped mutations
are removed. Imported mutations keep their documents and cannot be reset
individually.

With --all, every imported document, party, naming series counter and
history row is deleted.

Example:
  eboekhouden-sync reset 1042 1043
  eboekhouden-sync reset --all`,
	Run: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "Delete all imported documents and history")
}

func runReset(cmd *cobra.Command, args []string) {
	if !resetAll && len(args) == 0 {
		exitOnError(fmt.Errorf("pass mutation IDs or --all"), "nothing to reset")
	}

	a := openApp()
	defer a.Close()

	ctx := context.Background()

	if resetAll {
		exitOnError(a.conn.Reset(ctx), "failed to reset import state")
		slog.Info("Import state reset")
		fmt.Println("All imported documents and history deleted")
		return
	}

	history := db.NewImportHistory(a.conn)
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		exitOnError(err, "invalid mutation ID")

		rec, err := history.Get(ctx, id)
		exitOnError(err, "failed to read import history")
		if rec == nil {
			fmt.Printf("mutation %d: not in history\n", id)
			continue
		}
		if rec.Status == db.StatusImported {
			fmt.Printf("mutation %d: imported as %s, not reset\n", id, rec.DocumentName)
			continue
		}

		_, err = history.Delete(ctx, nil, id)
		exitOnError(err, "failed to delete history")
		slog.Info("Reset mutation", "mutation_id", id, "previous_status", rec.Status)
		fmt.Printf("mutation %d: reset\n", id)
	}
}
