package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/verenigingen/eboekhouden-sync/pkg/beancount"
	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

var (
	exportFrom   string
	exportTo     string
	exportDryRun bool
)

// exportCmd writes the imported ledger as Beancount files.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export imported documents to Beancount",
	Long: `Export imported journal entries, payments and invoices to Beancount.

Files are written below EXPORT_DIR (default {DATA_ROOT}/beancount):
  main.beancount            options and includes
  accounts.beancount        open directives
  YYYY/YYYY-MM.beancount    transactions per month

Monthly files are regenerated from the database on every export.

Example:
  eboekhouden-sync export
  eboekhouden-sync export --from 2024-01-01 --to 2024-03-31 --dry-run`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End date (YYYY-MM-DD)")
	exportCmd.Flags().BoolVar(&exportDryRun, "dry-run", false, "Print transactions instead of writing files")
}

func runExport(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	ctx := context.Background()

	mapper, err := a.mapper(ctx)
	exitOnError(err, "failed to load mappings")

	namer := beancount.NamerFromMapper(mapper, map[string]erp.RootType{
		a.cfg.Import.RoundOffAccount:          erp.RootExpense,
		a.cfg.Import.OpeningDifferenceAccount: erp.RootEquity,
	})

	title := a.cfg.Company
	repo := beancount.NewFileSystemRepository(a.paths)
	exporter := beancount.NewExporter(db.NewDocumentStore(a.conn), namer, repo, a.cfg.Storage.Currency, title, slog.Default())

	var dryRun io.Writer
	if exportDryRun {
		dryRun = os.Stdout
	}

	summary, err := exporter.Export(ctx, db.DateRange{From: exportFrom, To: exportTo}, dryRun)
	exitOnError(err, "export failed")

	if exportDryRun {
		return
	}
	fmt.Printf("Exported %d transactions in %d month file(s) to %s\n",
		summary.Transactions, len(summary.Months), a.paths.GetExportDir())
}
