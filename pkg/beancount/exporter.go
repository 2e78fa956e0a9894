package beancount

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

// DocumentSource lists stored documents.
type DocumentSource interface {
	ListJournals(ctx context.Context, r db.DateRange) ([]erp.JournalEntry, error)
	ListPayments(ctx context.Context, r db.DateRange) ([]erp.PaymentEntry, error)
	ListInvoices(ctx context.Context, r db.DateRange) ([]erp.Invoice, error)
}

// Exporter converts stored documents to Beancount transactions.
type Exporter struct {
	source   DocumentSource
	namer    *AccountNamer
	repo     Repository
	currency string
	title    string
	logger   *slog.Logger
}

// NewExporter creates a new Exporter.
func NewExporter(source DocumentSource, namer *AccountNamer, repo Repository, currency, title string, logger *slog.Logger) *Exporter {
	if currency == "" {
		currency = "EUR"
	}
	if title == "" {
		title = "e-Boekhouden import"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		source:   source,
		namer:    namer,
		repo:     repo,
		currency: currency,
		title:    title,
		logger:   logger,
	}
}

// ExportSummary reports what an export wrote.
type ExportSummary struct {
	Transactions int
	Months       []string
	Accounts     int
}

type dated struct {
	date string
	name string
	txn  Transaction
}

// Export writes monthly files for all documents in the range. With a
// non-nil dryRun writer the transactions are printed there instead.
func (e *Exporter) Export(ctx context.Context, r db.DateRange, dryRun io.Writer) (*ExportSummary, error) {
	txns, err := e.collect(ctx, r)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].date != txns[j].date {
			return txns[i].date < txns[j].date
		}
		return txns[i].name < txns[j].name
	})

	byMonth := make(map[string][]string)
	var months []string
	for _, t := range txns {
		month := t.date[:7]
		if _, ok := byMonth[month]; !ok {
			months = append(months, month)
		}
		byMonth[month] = append(byMonth[month], FormatTransaction(t.txn))
	}

	summary := &ExportSummary{Transactions: len(txns), Months: months, Accounts: len(e.namer.Used())}

	if dryRun != nil {
		for _, month := range months {
			fmt.Fprintf(dryRun, "; ---- %s ----\n", month)
			for _, txn := range byMonth[month] {
				fmt.Fprintln(dryRun, txn)
			}
		}
		return summary, nil
	}

	for _, month := range months {
		if err := e.repo.WriteMonthFile(month, byMonth[month]); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", month, err)
		}
		e.logger.Debug("Wrote month file", "month", month, "transactions", len(byMonth[month]))
	}

	if len(txns) > 0 {
		if err := e.repo.WriteAccounts(txns[0].date, e.namer.Used(), e.currency); err != nil {
			return nil, fmt.Errorf("failed to write accounts: %w", err)
		}
		if err := e.repo.WriteMain(e.title, e.currency); err != nil {
			return nil, fmt.Errorf("failed to write main file: %w", err)
		}
	}

	return summary, nil
}

func (e *Exporter) collect(ctx context.Context, r db.DateRange) ([]dated, error) {
	var txns []dated

	journals, err := e.source.ListJournals(ctx, r)
	if err != nil {
		return nil, err
	}
	for i := range journals {
		txn, err := e.ConvertJournal(&journals[i])
		if err != nil {
			return nil, err
		}
		txns = append(txns, dated{date: journals[i].PostingDate, name: journals[i].Name, txn: txn})
	}

	payments, err := e.source.ListPayments(ctx, r)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		txn, err := e.ConvertPayment(&payments[i])
		if err != nil {
			return nil, err
		}
		txns = append(txns, dated{date: payments[i].PostingDate, name: payments[i].Name, txn: txn})
	}

	invoices, err := e.source.ListInvoices(ctx, r)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		txn, err := e.ConvertInvoice(&invoices[i])
		if err != nil {
			return nil, err
		}
		txns = append(txns, dated{date: invoices[i].PostingDate, name: invoices[i].Name, txn: txn})
	}

	return txns, nil
}

func (e *Exporter) posting(account string, amount decimal.Decimal, comment string) (Posting, error) {
	name, err := e.namer.Name(account)
	if err != nil {
		return Posting{}, err
	}
	return Posting{Account: name, Amount: amount.Round(2), Currency: e.currency, Comment: comment}, nil
}

func metadata(name string, mutationID int64) map[string]string {
	return map[string]string{
		"document": name,
		"mutation": strconv.FormatInt(mutationID, 10),
	}
}

// ConvertJournal converts a journal entry; debits are positive.
func (e *Exporter) ConvertJournal(je *erp.JournalEntry) (Transaction, error) {
	txn := Transaction{
		Date:      je.PostingDate,
		Narration: je.Title,
		Metadata:  metadata(je.Name, je.MutationID),
		Comment:   fmt.Sprintf("mutation %d", je.MutationID),
	}
	if je.IsOpening {
		txn.Tags = []string{"opening"}
	}

	for _, l := range je.Lines {
		if txn.Payee == "" && l.Party != "" {
			txn.Payee = l.Party
		}
		p, err := e.posting(l.Account, l.Signed(), l.Party)
		if err != nil {
			return txn, fmt.Errorf("%s: %w", je.Name, err)
		}
		txn.Postings = append(txn.Postings, p)
	}
	return txn, nil
}

// ConvertPayment converts a payment entry: the paid-to account receives the
// amount and the paid-from account gives it.
func (e *Exporter) ConvertPayment(pe *erp.PaymentEntry) (Transaction, error) {
	txn := Transaction{
		Date:      pe.PostingDate,
		Payee:     pe.Party,
		Narration: fmt.Sprintf("Payment %s", pe.ReferenceNo),
		Metadata:  metadata(pe.Name, pe.MutationID),
		Comment:   fmt.Sprintf("mutation %d", pe.MutationID),
	}
	for _, ref := range pe.References {
		if link := sanitizeLink(ref.BillNo); link != "" {
			txn.Links = append(txn.Links, link)
		}
	}

	to, err := e.posting(pe.PaidTo, pe.PaidAmount, "")
	if err != nil {
		return txn, fmt.Errorf("%s: %w", pe.Name, err)
	}
	from, err := e.posting(pe.PaidFrom, pe.PaidAmount.Neg(), "")
	if err != nil {
		return txn, fmt.Errorf("%s: %w", pe.Name, err)
	}
	if !pe.UnallocatedAmount.IsZero() {
		txn.Metadata["unallocated"] = pe.UnallocatedAmount.StringFixed(2)
	}
	txn.Postings = []Posting{to, from}
	return txn, nil
}

// ConvertInvoice converts an invoice. A sales invoice debits the receivable
// and credits revenue and VAT; a purchase invoice the inverse. Credit notes
// flip the signs.
func (e *Exporter) ConvertInvoice(inv *erp.Invoice) (Transaction, error) {
	txn := Transaction{
		Date:      inv.PostingDate,
		Payee:     inv.Party,
		Narration: fmt.Sprintf("%s %s", inv.Kind.DocType(), inv.BillNo),
		Metadata:  metadata(inv.Name, inv.MutationID),
		Comment:   fmt.Sprintf("mutation %d", inv.MutationID),
	}
	if inv.BillNo == "" {
		txn.Narration = string(inv.Kind.DocType())
	}
	if link := sanitizeLink(inv.BillNo); link != "" {
		txn.Links = []string{link}
	}
	if inv.IsReturn {
		txn.Tags = []string{"credit-note"}
	}

	sign := decimal.NewFromInt(1)
	if inv.Kind == erp.InvoicePurchase {
		sign = sign.Neg()
	}
	if inv.IsReturn {
		sign = sign.Neg()
	}

	party, err := e.posting(inv.PartyAccount, inv.GrandTotal.Mul(sign), "")
	if err != nil {
		return txn, fmt.Errorf("%s: %w", inv.Name, err)
	}
	txn.Postings = append(txn.Postings, party)

	for _, it := range inv.Items {
		p, err := e.posting(it.Account, it.Amount.Mul(sign).Neg(), it.Description)
		if err != nil {
			return txn, fmt.Errorf("%s: %w", inv.Name, err)
		}
		txn.Postings = append(txn.Postings, p)
	}
	for _, tax := range inv.Taxes {
		p, err := e.posting(tax.Account, tax.Amount.Mul(sign).Neg(), tax.VatCode)
		if err != nil {
			return txn, fmt.Errorf("%s: %w", inv.Name, err)
		}
		txn.Postings = append(txn.Postings, p)
	}
	return txn, nil
}
