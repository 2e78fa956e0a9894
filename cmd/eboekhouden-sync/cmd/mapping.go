package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
)

var suggestOutput string

// mappingCmd groups the ledger mapping commands.
var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Manage the ledger to account mapping",
	Long: `Manage how e-Boekhouden ledgers and VAT codes map to accounts.

Every ledger used by a mutation needs a mapping; there is no default
account. Use 'mapping suggest' to draft mappings for unmapped ledgers,
review the file, then load it with 'mapping import'.`,
}

var mappingImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load a YAML mapping file into the database",
	Long: `Load ledger and VAT code mappings from a YAML file.

Existing mappings for the same ledger or VAT code are replaced.
Without a file argument {DATA_ROOT}/ledger-mapping.yaml is used.

Example:
  eboekhouden-sync mapping import config/ledger-mapping.yaml`,
	Args: cobra.MaximumNArgs(1),
	Run:  runMappingImport,
}

var mappingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored mappings",
	Run:   runMappingList,
}

var mappingSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest mappings for unmapped ledgers",
	Long: `Fetch the chart of accounts from e-Boekhouden and propose an account
type and root type for every ledger that has no mapping yet.

The suggestions are printed as YAML in mapping file format.

Example:
  eboekhouden-sync mapping suggest --output suggested.yaml`,
	Run: runMappingSuggest,
}

func init() {
	mappingSuggestCmd.Flags().StringVarP(&suggestOutput, "output", "o", "", "Write suggestions to a file instead of stdout")

	mappingCmd.AddCommand(mappingImportCmd)
	mappingCmd.AddCommand(mappingListCmd)
	mappingCmd.AddCommand(mappingSuggestCmd)
}

func runMappingImport(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	path := a.paths.GetMappingFilePath()
	if len(args) == 1 {
		path = args[0]
	}
	if !a.paths.FileExists(path) {
		exitOnError(fmt.Errorf("%s does not exist, create one with 'mapping suggest -o %s'", path, path), "failed to load mapping file")
	}

	slog.Info("Loading mapping file", "path", path)
	file, err := mapping.LoadFile(path)
	exitOnError(err, "failed to load mapping file")

	count, err := db.NewMappingStore(a.conn).Import(context.Background(), file)
	exitOnError(err, "failed to store mappings")

	fmt.Printf("Stored %d ledger and %d VAT code mappings\n", len(file.Ledgers), len(file.VatCodes))
	slog.Debug("Mappings imported", "count", count)
}

func runMappingList(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	ctx := context.Background()
	store := db.NewMappingStore(a.conn)

	ledgers, err := store.ListLedgers(ctx)
	exitOnError(err, "failed to list ledger mappings")
	vat, err := store.ListVat(ctx)
	exitOnError(err, "failed to list VAT mappings")

	if len(ledgers) == 0 && len(vat) == 0 {
		fmt.Println("No mappings stored")
		return
	}

	fmt.Println("=== Ledgers ===")
	for _, l := range ledgers {
		fmt.Printf("%-8d %-8s %-40s %-18s %s\n", l.LedgerID, l.Code, l.Account, l.AccountType, l.RootType)
	}
	if len(vat) > 0 {
		fmt.Println("\n=== VAT codes ===")
		for _, v := range vat {
			fmt.Printf("%-16s %6s%%  %s\n", v.Code, v.Rate.String(), v.Account)
		}
	}
}

func runMappingSuggest(cmd *cobra.Command, args []string) {
	a := openApp(
		[]string{"eboekhouden", "apiUrl"},
		[]string{"eboekhouden", "apiToken"},
	)
	defer a.Close()

	ctx := context.Background()

	mapper, err := db.NewMappingStore(a.conn).LoadMapper(ctx)
	exitOnError(err, "failed to load mappings")

	client := a.client()
	defer client.Logout(ctx)

	ledgers, err := client.ListLedgers(ctx)
	exitOnError(err, "failed to list ledgers")

	suggestions := mapping.SuggestAll(ledgers, mapper)
	slog.Info("Suggested mappings", "ledgers", len(ledgers), "unmapped", len(suggestions))
	if len(suggestions) == 0 {
		fmt.Println("All ledgers are mapped")
		return
	}

	file := mapping.File{}
	var sb strings.Builder
	sb.WriteString("# Suggested mappings, review before importing\n")
	for _, s := range suggestions {
		file.Ledgers = append(file.Ledgers, s.Mapping)
		sb.WriteString(fmt.Sprintf("# %d %s: %s\n", s.Mapping.LedgerID, s.Mapping.Account, s.Reason))
	}

	data, err := file.Marshal()
	exitOnError(err, "failed to render suggestions")
	sb.Write(data)

	if suggestOutput == "" {
		fmt.Print(sb.String())
		return
	}
	exitOnError(os.WriteFile(suggestOutput, []byte(sb.String()), 0644), "failed to write suggestions")
	fmt.Printf("Wrote %d suggestions to %s\n", len(suggestions), suggestOutput)
}
