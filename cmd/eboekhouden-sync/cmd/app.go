package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/verenigingen/eboekhouden-sync/pkg/config"
	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/importer"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
	"github.com/verenigingen/eboekhouden-sync/pkg/parties"
	"github.com/verenigingen/eboekhouden-sync/pkg/pathutil"
)

// app holds what most commands need: configuration, paths and the database.
type app struct {
	cfg   *config.Config
	paths *pathutil.PathResolver
	conn  *db.Connection
}

// openApp loads the configuration, checks the required fields and opens the
// database.
func openApp(required ...[]string) *app {
	slog.Debug("Loading configuration")

	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	required = append(required, []string{"storage", "dataRoot"})
	if err := cfg.Validate(required...); err != nil {
		exitOnError(err, "invalid configuration")
	}

	paths := pathutil.New(pathutil.Config{
		DataRoot:     cfg.Storage.DataRoot,
		DatabasePath: cfg.Storage.DBPath,
		ExportDir:    cfg.Storage.ExportDir,
	})

	dbPath := paths.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)

	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")

	return &app{cfg: cfg, paths: paths, conn: conn}
}

func (a *app) Close() {
	if err := a.conn.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func (a *app) client() *eboekhouden.Client {
	return eboekhouden.NewClient(eboekhouden.ClientConfig{
		APIURL:   a.cfg.EBoekhouden.APIURL,
		APIToken: a.cfg.EBoekhouden.APIToken,
		Source:   a.cfg.EBoekhouden.Source,
		Timeout:  30 * time.Second,
	})
}

// mapper loads the stored ledger mapping. An empty mapping is an error
// because every mutation would fail.
func (a *app) mapper(ctx context.Context) (*mapping.Mapper, error) {
	m, err := db.NewMappingStore(a.conn).LoadMapper(ctx)
	if err != nil {
		return nil, err
	}
	if len(m.Ledgers()) == 0 {
		return nil, fmt.Errorf("no ledger mappings stored; run 'eboekhouden-sync mapping import %s' first", a.paths.GetMappingFilePath())
	}
	return m, nil
}

// importOptions describes one import run.
type importOptions struct {
	from   string
	to     string
	filter string
	strict bool
}

// runImport fetches mutations for the range and imports them.
// An empty from resumes at the last imported mutation date, or earlier when
// older mutations failed.
func (a *app) runImport(ctx context.Context, opts importOptions) (*importer.RunSummary, error) {
	if opts.from == "" {
		from, err := db.NewImportHistory(a.conn).ResumeDate(ctx)
		if err != nil {
			return nil, err
		}
		opts.from = from
	}
	if opts.to == "" {
		opts.to = time.Now().Format("2006-01-02")
	}

	filterSource := opts.filter
	if filterSource == "" {
		filterSource = a.cfg.Import.Filter
	}
	filter, err := importer.NewFilter(filterSource)
	if err != nil {
		return nil, err
	}

	m, err := a.mapper(ctx)
	if err != nil {
		return nil, err
	}

	client := a.client()
	defer func() {
		if err := client.Logout(context.WithoutCancel(ctx)); err != nil {
			slog.Debug("Failed to close API session", "error", err)
		}
	}()

	slog.Info("Fetching mutations from e-Boekhouden", "from", opts.from, "to", opts.to)
	mutations, err := client.FetchAllMutations(ctx, opts.from, opts.to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mutations: %w", err)
	}
	slog.Info("Fetched mutations", "count", len(mutations))

	resolver := parties.NewResolver(client, db.NewPartyStore(a.conn), slog.Default())
	imp := importer.New(a.conn, m, resolver, client, importer.Options{
		OpeningDifferenceAccount: a.cfg.Import.OpeningDifferenceAccount,
		RoundOffAccount:          a.cfg.Import.RoundOffAccount,
		RoundingTolerance:        a.cfg.Import.RoundingTolerance,
		DefaultCustomer:          a.cfg.Import.DefaultCustomer,
		DefaultSupplier:          a.cfg.Import.DefaultSupplier,
		Strict:                   opts.strict,
		Filter:                   filter,
	}, slog.Default())

	return imp.Import(ctx, mutations)
}
