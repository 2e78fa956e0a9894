package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/importer"
)

var (
	importFrom   string
	importTo     string
	importFilter string
	importStrict bool
)

// importCmd represents the import command.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import e-Boekhouden mutations",
	Long: `Import mutations from the e-Boekhouden API.

This command:
1. Fetches mutations in the date range (default: since the last import)
2. Orders them so invoices exist before their payments
3. Creates journal entries, payment entries and invoices
4. Records every mutation in the import history

Mutations that were already imported are skipped, so the command can be
re-run safely. Failed mutations are retried on the next run.

Example:
  eboekhouden-sync import --from 2024-01-01 --to 2024-12-31
  eboekhouden-sync import --filter 'Type == 2 && Amount > 100'
  eboekhouden-sync import --strict`,
	Run: runImportCmd,
}

func init() {
	importCmd.Flags().StringVar(&importFrom, "from", "", "Start date (YYYY-MM-DD), default is the last imported date")
	importCmd.Flags().StringVar(&importTo, "to", "", "End date (YYYY-MM-DD), default is today")
	importCmd.Flags().StringVar(&importFilter, "filter", "", "expr filter on mutations, overrides IMPORT_FILTER")
	importCmd.Flags().BoolVar(&importStrict, "strict", false, "Stop at the first failed mutation")
}

func runImportCmd(cmd *cobra.Command, args []string) {
	a := openApp(
		[]string{"eboekhouden", "apiUrl"},
		[]string{"eboekhouden", "apiToken"},
	)
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := a.runImport(ctx, importOptions{
		from:   importFrom,
		to:     importTo,
		filter: importFilter,
		strict: importStrict,
	})
	if summary != nil {
		printSummary(summary)
	}
	exitOnError(err, "import failed")
}

func printSummary(s *importer.RunSummary) {
	fmt.Println("\n=== Import Summary ===")
	fmt.Printf("Run:              %s\n", s.RunID)
	fmt.Printf("Imported:         %d\n", s.Imported)
	fmt.Printf("Skipped:          %d\n", s.Skipped)
	fmt.Printf("Failed:           %d\n", s.Failed)
	fmt.Printf("Already imported: %d\n", s.AlreadyImported)
	if s.Filtered > 0 {
		fmt.Printf("Filtered out:     %d\n", s.Filtered)
	}
	if s.Overpayments > 0 {
		fmt.Printf("Overpayments:     %d\n", s.Overpayments)
	}

	types := make([]eboekhouden.MutationType, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		fmt.Printf("  %-18s %d\n", t.String()+":", s.ByType[t])
	}

	if len(s.Failures) > 0 {
		fmt.Println("\nFailures:")
		for _, f := range s.Failures {
			fmt.Printf("  mutation %d (%s): %s\n", f.MutationID, f.Type, f.Message)
		}
	}
	fmt.Println()
}
