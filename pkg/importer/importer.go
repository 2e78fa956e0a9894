// Package importer turns e-Boekhouden mutations into ledger documents.
//
// Each mutation type maps to one document kind:
//
//	0 opening balance      Opening Entry journal
//	1 purchase invoice     Purchase Invoice
//	2 sales invoice        Sales Invoice
//	3 customer payment     Payment Entry (Receive)
//	4 supplier payment     Payment Entry (Pay)
//	5 money received       Bank/Cash Entry journal
//	6 money sent           Bank/Cash Entry journal
//	7 memorial             Journal Entry
//
// A mutation is written together with its import history record in one
// transaction, so re-running an import never creates a document twice.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
)

// AccountResolver resolves ledgers and VAT codes to accounts.
type AccountResolver interface {
	Account(ledgerID int64) (mapping.LedgerMapping, error)
	VatAccount(code string) (*mapping.VatMapping, error)
}

// PartyResolver resolves relations to party names.
type PartyResolver interface {
	Resolve(ctx context.Context, relationID int64, partyType erp.PartyType) (string, error)
}

// MutationFetcher loads the full mutation when a listing omitted its rows.
type MutationFetcher interface {
	GetMutation(ctx context.Context, id int64) (*eboekhouden.Mutation, error)
}

// Options configures the import.
type Options struct {
	OpeningDifferenceAccount string
	RoundOffAccount          string
	DefaultCustomer          string
	DefaultSupplier          string

	// RoundingTolerance is used as given; zero requires exact balance.
	RoundingTolerance decimal.Decimal

	// Strict aborts the run on the first failed mutation.
	Strict bool

	Filter *Filter
}

// DefaultRoundingTolerance is the usual largest journal difference posted to
// the round-off account.
var DefaultRoundingTolerance = decimal.RequireFromString("0.05")

// Importer imports mutations into the document store.
type Importer struct {
	conn    *db.Connection
	docs    *db.DocumentStore
	history *db.ImportHistory
	mapper  AccountResolver
	parties PartyResolver
	fetcher MutationFetcher
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Importer. fetcher may be nil.
func New(conn *db.Connection, mapper AccountResolver, parties PartyResolver, fetcher MutationFetcher, opts Options, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		conn:    conn,
		docs:    db.NewDocumentStore(conn),
		history: db.NewImportHistory(conn),
		mapper:  mapper,
		parties: parties,
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Result is the outcome of importing one mutation.
type Result struct {
	MutationID      int64
	Type            eboekhouden.MutationType
	Status          db.Status
	DocType         erp.DocType
	DocName         string
	Message         string
	Overpayment     bool
	AlreadyImported bool
}

// RunSummary summarizes an import run.
type RunSummary struct {
	RunID           string
	Started         time.Time
	Finished        time.Time
	Imported        int
	Skipped         int
	Failed          int
	AlreadyImported int
	Filtered        int
	Overpayments    int
	ByType          map[eboekhouden.MutationType]int
	Failures        []Result
}

func (s *RunSummary) add(r Result) {
	switch {
	case r.AlreadyImported:
		s.AlreadyImported++
	case r.Status == db.StatusImported:
		s.Imported++
		s.ByType[r.Type]++
	case r.Status == db.StatusSkipped:
		s.Skipped++
	case r.Status == db.StatusFailed:
		s.Failed++
		s.Failures = append(s.Failures, r)
	}
	if r.Overpayment {
		s.Overpayments++
	}
}

// typePriority orders mutations so invoices exist before their payments
// and corrections come last within a day.
func typePriority(t eboekhouden.MutationType) int {
	switch t {
	case eboekhouden.MutationOpeningBalance:
		return 0
	case eboekhouden.MutationPurchaseInvoice, eboekhouden.MutationSalesInvoice:
		return 1
	case eboekhouden.MutationCustomerPayment, eboekhouden.MutationSupplierPayment:
		return 2
	case eboekhouden.MutationMoneyReceived, eboekhouden.MutationMoneySent:
		return 3
	default:
		return 4
	}
}

// SortMutations orders mutations by date, type priority and id.
func SortMutations(mutations []eboekhouden.Mutation) {
	sort.SliceStable(mutations, func(i, j int) bool {
		a, b := mutations[i], mutations[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if pa, pb := typePriority(a.Type), typePriority(b.Type); pa != pb {
			return pa < pb
		}
		return a.ID < b.ID
	})
}

// Import imports mutations in dependency order.
// Individual mutation failures are recorded and counted; an error is only
// returned for database or context failures, or in strict mode.
func (im *Importer) Import(ctx context.Context, mutations []eboekhouden.Mutation) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:   uuid.NewString(),
		Started: im.now(),
		ByType:  make(map[eboekhouden.MutationType]int),
	}

	ordered := make([]eboekhouden.Mutation, len(mutations))
	copy(ordered, mutations)
	SortMutations(ordered)

	im.logger.Info("Starting import", "run_id", summary.RunID, "mutations", len(ordered), "filter", im.opts.Filter.String())

	lastDate := ""
	var runErr error
	for i := range ordered {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		m := &ordered[i]
		ok, err := im.opts.Filter.Match(m)
		if err != nil {
			runErr = err
			break
		}
		if !ok {
			summary.Filtered++
			continue
		}

		result, err := im.importOne(ctx, m, summary.RunID)
		if err != nil {
			runErr = err
			break
		}
		summary.add(result)

		if result.Status == db.StatusImported && m.Date > lastDate {
			lastDate = m.Date
		}

		if result.Status == db.StatusFailed && im.opts.Strict {
			runErr = fmt.Errorf("mutation %d failed: %s", m.ID, result.Message)
			break
		}
	}

	summary.Finished = im.now()

	if err := im.finishRun(ctx, summary, lastDate); err != nil && runErr == nil {
		runErr = err
	}

	im.logger.Info("Import finished",
		"run_id", summary.RunID,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"already_imported", summary.AlreadyImported,
		"overpayments", summary.Overpayments,
	)

	return summary, runErr
}

func (im *Importer) finishRun(ctx context.Context, summary *RunSummary, lastDate string) error {
	// The run record is written even when ctx was cancelled.
	bg := context.WithoutCancel(ctx)

	if err := im.history.RecordRun(bg, db.RunRecord{
		RunID:        summary.RunID,
		StartedAt:    summary.Started,
		FinishedAt:   summary.Finished,
		Imported:     summary.Imported,
		Skipped:      summary.Skipped,
		Failed:       summary.Failed,
		Overpayments: summary.Overpayments,
	}); err != nil {
		return err
	}

	if lastDate == "" {
		return nil
	}
	current, err := im.history.GetMetadata(bg, db.MetaLastImportDate)
	if err != nil {
		return err
	}
	if lastDate > current {
		return im.history.SetMetadata(bg, db.MetaLastImportDate, lastDate)
	}
	return nil
}

// ImportOne imports a single mutation outside of a run.
func (im *Importer) ImportOne(ctx context.Context, m eboekhouden.Mutation) (Result, error) {
	return im.importOne(ctx, &m, uuid.NewString())
}

func (im *Importer) importOne(ctx context.Context, m *eboekhouden.Mutation, runID string) (Result, error) {
	result := Result{MutationID: m.ID, Type: m.Type}
	logger := im.logger.With("mutation_id", m.ID, "type", m.Type.String())

	previous, err := im.history.Get(ctx, m.ID)
	if err != nil {
		return result, err
	}
	if previous != nil && previous.Status == db.StatusImported {
		logger.Debug("Already imported", "document", previous.DocumentName)
		result.Status = db.StatusImported
		result.DocType = erp.DocType(previous.DocumentType)
		result.DocName = previous.DocumentName
		result.AlreadyImported = true
		return result, nil
	}

	if err := im.loadRows(ctx, m); err != nil {
		return im.fail(ctx, logger, m, runID, result, err)
	}

	if m.IsZero() {
		result.Status = db.StatusSkipped
		result.Message = "zero amount"
		return result, im.record(ctx, nil, m, runID, result)
	}

	p, err := im.build(ctx, m)
	if err != nil {
		return im.fail(ctx, logger, m, runID, result, err)
	}
	if p.skipReason != "" {
		logger.Debug("Skipped mutation", "reason", p.skipReason)
		result.Status = db.StatusSkipped
		result.Message = p.skipReason
		return result, im.record(ctx, nil, m, runID, result)
	}

	persisted, err := im.persist(ctx, m, runID, p)
	if err != nil {
		if !isMutationError(err) {
			return result, err
		}
		return im.fail(ctx, logger, m, runID, result, err)
	}
	logger.Info("Processed mutation", "status", persisted.Status, "document_type", persisted.DocType, "document", persisted.DocName)
	return persisted, nil
}

// loadRows fetches the full mutation when a listing left out its rows.
func (im *Importer) loadRows(ctx context.Context, m *eboekhouden.Mutation) error {
	if len(m.Rows) > 0 || im.fetcher == nil {
		return nil
	}
	full, err := im.fetcher.GetMutation(ctx, m.ID)
	if err != nil {
		return err
	}
	m.Rows = full.Rows
	if m.Amount.IsZero() {
		m.Amount = full.Amount
	}
	return nil
}

// fail records a mutation failure. Cancellation is returned instead.
func (im *Importer) fail(ctx context.Context, logger *slog.Logger, m *eboekhouden.Mutation, runID string, result Result, err error) (Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	logger.Warn("Mutation failed", "error", err)
	result.Status = db.StatusFailed
	result.Message = err.Error()
	return result, im.record(ctx, nil, m, runID, result)
}

// isMutationError reports whether a write failed because of the document
// itself rather than the database.
func isMutationError(err error) bool {
	return errors.Is(err, erp.ErrInvalidDocument) || db.IsConstraint(err)
}

func (im *Importer) record(ctx context.Context, q db.Querier, m *eboekhouden.Mutation, runID string, r Result) error {
	amount := m.Amount
	if amount.IsZero() {
		amount = m.RowTotal()
	}
	return im.history.Record(ctx, q, db.HistoryRecord{
		MutationID:   m.ID,
		MutationType: int(m.Type),
		MutationDate: m.Date,
		Amount:       amount.StringFixed(2),
		Status:       r.Status,
		DocumentType: string(r.DocType),
		DocumentName: r.DocName,
		Message:      r.Message,
		RunID:        runID,
	})
}

// plan is the document built for a mutation, before it gets a name.
type plan struct {
	journal    *erp.JournalEntry
	invoice    *erp.Invoice
	payment    *paymentPlan
	correction *correction
	skipReason string
}

func (im *Importer) build(ctx context.Context, m *eboekhouden.Mutation) (*plan, error) {
	if !m.Type.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, int(m.Type))
	}
	if m.Date == "" {
		return nil, fmt.Errorf("mutation %d has no date", m.ID)
	}

	switch m.Type {
	case eboekhouden.MutationOpeningBalance:
		return im.buildOpening(ctx, m)
	case eboekhouden.MutationPurchaseInvoice:
		return im.buildInvoice(ctx, m, erp.InvoicePurchase)
	case eboekhouden.MutationSalesInvoice:
		return im.buildInvoice(ctx, m, erp.InvoiceSales)
	case eboekhouden.MutationCustomerPayment, eboekhouden.MutationSupplierPayment:
		return im.buildPayment(ctx, m)
	case eboekhouden.MutationMoneyReceived, eboekhouden.MutationMoneySent:
		return im.buildMoney(ctx, m)
	default:
		return im.buildMemorial(ctx, m)
	}
}

// persist names and stores the planned document and records the history
// in one transaction.
func (im *Importer) persist(ctx context.Context, m *eboekhouden.Mutation, runID string, p *plan) (Result, error) {
	result := Result{MutationID: m.ID, Type: m.Type, Status: db.StatusImported}

	err := im.conn.Transaction(ctx, func(tx *sql.Tx) error {
		existing, err := im.docs.FindByMutation(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.DocType = existing.Type
			result.DocName = existing.Name
			result.Message = "document already exists"
			return im.record(ctx, tx, m, runID, result)
		}

		switch {
		case p.journal != nil:
			err = im.persistJournal(ctx, tx, p, &result)
		case p.invoice != nil:
			err = im.persistInvoice(ctx, tx, p.invoice, &result)
		case p.payment != nil:
			err = im.persistPayment(ctx, tx, m, p.payment, &result)
		default:
			err = fmt.Errorf("%w: nothing to import", erp.ErrInvalidDocument)
		}
		if err != nil {
			return err
		}

		return im.record(ctx, tx, m, runID, result)
	})

	return result, err
}

func (im *Importer) persistJournal(ctx context.Context, tx *sql.Tx, p *plan, result *Result) error {
	je := p.journal
	name, err := im.docs.NextName(ctx, tx, erp.DocJournalEntry, je.PostingDate)
	if err != nil {
		return err
	}
	je.Name = name

	if err := im.docs.InsertJournal(ctx, tx, je); err != nil {
		return err
	}

	result.DocType = erp.DocJournalEntry
	result.DocName = name

	if p.correction != nil {
		msg, err := im.applyCorrection(ctx, tx, p.correction)
		if err != nil {
			return err
		}
		result.Message = msg
	}
	return nil
}
