package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

// DocumentRef identifies a stored document.
type DocumentRef struct {
	Type erp.DocType
	Name string
}

// DocumentStore persists journal entries, payment entries and invoices.
// Every method takes a Querier so it can join the caller's transaction.
type DocumentStore struct {
	conn *Connection
}

// NewDocumentStore creates a new DocumentStore instance.
func NewDocumentStore(conn *Connection) *DocumentStore {
	return &DocumentStore{conn: conn}
}

func (s *DocumentStore) querier(q Querier) Querier {
	if q == nil {
		return s.conn.db
	}
	return q
}

// NextName allocates the next document name in the series of doc for the
// posting year, e.g. "ACC-JV-2024-00001".
func (s *DocumentStore) NextName(ctx context.Context, q Querier, doc erp.DocType, postingDate string) (string, error) {
	q = s.querier(q)

	key, err := erp.SeriesKey(doc, postingDate)
	if err != nil {
		return "", err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO naming_series (series, current) VALUES (?, 1)
		ON CONFLICT(series) DO UPDATE SET current = naming_series.current + 1`, key)
	if err != nil {
		return "", fmt.Errorf("failed to advance naming series %s: %w", key, err)
	}

	var current int64
	if err := q.QueryRowContext(ctx, `SELECT current FROM naming_series WHERE series = ?`, key).Scan(&current); err != nil {
		return "", fmt.Errorf("failed to read naming series %s: %w", key, err)
	}

	return erp.FormatName(key, current), nil
}

// InsertJournal stores a journal entry.
func (s *DocumentStore) InsertJournal(ctx context.Context, q Querier, je *erp.JournalEntry) error {
	payload, err := json.Marshal(je)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	_, err = s.querier(q).ExecContext(ctx, `
		INSERT INTO journal_entries (name, mutation_id, voucher_type, posting_date, total, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		je.Name, je.MutationID, string(je.VoucherType), je.PostingDate,
		je.TotalDebit().StringFixed(2), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry %s: %w", je.Name, err)
	}
	return nil
}

// InsertPayment stores a payment entry.
func (s *DocumentStore) InsertPayment(ctx context.Context, q Querier, pe *erp.PaymentEntry) error {
	payload, err := json.Marshal(pe)
	if err != nil {
		return fmt.Errorf("failed to encode payment entry: %w", err)
	}

	_, err = s.querier(q).ExecContext(ctx, `
		INSERT INTO payment_entries (name, mutation_id, payment_type, posting_date, party_type, party,
			paid_amount, unallocated_amount, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pe.Name, pe.MutationID, string(pe.PaymentType), pe.PostingDate, string(pe.PartyType), pe.Party,
		pe.PaidAmount.StringFixed(2), pe.UnallocatedAmount.StringFixed(2), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment entry %s: %w", pe.Name, err)
	}
	return nil
}

// InsertInvoice stores a sales or purchase invoice.
func (s *DocumentStore) InsertInvoice(ctx context.Context, q Querier, inv *erp.Invoice) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to encode invoice: %w", err)
	}

	_, err = s.querier(q).ExecContext(ctx, `
		INSERT INTO invoices (name, mutation_id, kind, posting_date, party, bill_no, is_return, grand_total, outstanding, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Name, inv.MutationID, string(inv.Kind), inv.PostingDate, inv.Party, inv.BillNo, inv.IsReturn,
		inv.GrandTotal.StringFixed(2), inv.Outstanding.StringFixed(2), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice %s: %w", inv.Name, err)
	}
	return nil
}

// FindByMutation returns the document created for a mutation, if any.
func (s *DocumentStore) FindByMutation(ctx context.Context, q Querier, mutationID int64) (*DocumentRef, error) {
	var ref DocumentRef
	var docType string
	err := s.querier(q).QueryRowContext(ctx, `
		SELECT 'Journal Entry', name FROM journal_entries WHERE mutation_id = ?
		UNION ALL
		SELECT 'Payment Entry', name FROM payment_entries WHERE mutation_id = ?
		UNION ALL
		SELECT CASE kind WHEN 'Purchase' THEN 'Purchase Invoice' ELSE 'Sales Invoice' END, name
		FROM invoices WHERE mutation_id = ?
		LIMIT 1`, mutationID, mutationID, mutationID).Scan(&docType, &ref.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document of mutation %d: %w", mutationID, err)
	}
	ref.Type = erp.DocType(docType)
	return &ref, nil
}

// FindInvoice returns the oldest invoice, or credit note when isReturn is
// set, of a party with the given bill number. It returns nil when none exists.
func (s *DocumentStore) FindInvoice(ctx context.Context, q Querier, kind erp.InvoiceKind, party, billNo string, isReturn bool) (*erp.Invoice, error) {
	rows, err := s.querier(q).QueryContext(ctx, `
		SELECT payload, outstanding FROM invoices
		WHERE kind = ? AND party = ? AND bill_no = ? AND is_return = ?
		ORDER BY posting_date, name LIMIT 1`, string(kind), party, billNo, isReturn)
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice %s: %w", billNo, err)
	}
	invoices, err := scanInvoices(rows)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

// OpenInvoices returns the party's invoices with an outstanding amount whose
// bill number is one of billNos, oldest first.
func (s *DocumentStore) OpenInvoices(ctx context.Context, q Querier, kind erp.InvoiceKind, party string, billNos []string) ([]erp.Invoice, error) {
	if len(billNos) == 0 {
		return nil, nil
	}

	args := []interface{}{string(kind), party}
	placeholders := make([]string, len(billNos))
	for i, b := range billNos {
		placeholders[i] = "?"
		args = append(args, b)
	}

	query := fmt.Sprintf(`
		SELECT payload, outstanding FROM invoices
		WHERE kind = ? AND party = ? AND bill_no IN (%s) AND CAST(outstanding AS REAL) > 0
		ORDER BY posting_date, name`, strings.Join(placeholders, ", "))

	rows, err := s.querier(q).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query open invoices: %w", err)
	}
	return scanInvoices(rows)
}

// UpdateInvoiceOutstanding sets the outstanding amount of an invoice.
func (s *DocumentStore) UpdateInvoiceOutstanding(ctx context.Context, q Querier, name string, outstanding decimal.Decimal) error {
	return s.updateAmount(ctx, q, `UPDATE invoices SET outstanding = ? WHERE name = ?`, name, outstanding)
}

// OpenPayments returns the party's payment entries with an unallocated
// amount, oldest first.
func (s *DocumentStore) OpenPayments(ctx context.Context, q Querier, partyType erp.PartyType, party string) ([]erp.PaymentEntry, error) {
	rows, err := s.querier(q).QueryContext(ctx, `
		SELECT payload, unallocated_amount FROM payment_entries
		WHERE party_type = ? AND party = ? AND CAST(unallocated_amount AS REAL) > 0
		ORDER BY posting_date, name`, string(partyType), party)
	if err != nil {
		return nil, fmt.Errorf("failed to query open payments: %w", err)
	}
	return scanPayments(rows)
}

// UpdatePaymentUnallocated sets the unallocated amount of a payment entry.
func (s *DocumentStore) UpdatePaymentUnallocated(ctx context.Context, q Querier, name string, unallocated decimal.Decimal) error {
	return s.updateAmount(ctx, q, `UPDATE payment_entries SET unallocated_amount = ? WHERE name = ?`, name, unallocated)
}

func (s *DocumentStore) updateAmount(ctx context.Context, q Querier, query, name string, amount decimal.Decimal) error {
	result, err := s.querier(q).ExecContext(ctx, query, amount.StringFixed(2), name)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s not found", name)
	}
	return nil
}

// DateRange limits listings to posting dates within [From, To].
// Empty bounds are open.
type DateRange struct {
	From string
	To   string
}

func (r DateRange) where(column string) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if r.From != "" {
		clauses = append(clauses, column+" >= ?")
		args = append(args, r.From)
	}
	if r.To != "" {
		clauses = append(clauses, column+" <= ?")
		args = append(args, r.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListJournals lists journal entries by posting date.
func (s *DocumentStore) ListJournals(ctx context.Context, r DateRange) ([]erp.JournalEntry, error) {
	where, args := r.where("posting_date")
	rows, err := s.conn.db.QueryContext(ctx,
		`SELECT payload FROM journal_entries`+where+` ORDER BY posting_date, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []erp.JournalEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		var je erp.JournalEntry
		if err := json.Unmarshal([]byte(payload), &je); err != nil {
			return nil, fmt.Errorf("failed to decode journal entry: %w", err)
		}
		entries = append(entries, je)
	}
	return entries, rows.Err()
}

// ListPayments lists payment entries by posting date.
func (s *DocumentStore) ListPayments(ctx context.Context, r DateRange) ([]erp.PaymentEntry, error) {
	where, args := r.where("posting_date")
	rows, err := s.conn.db.QueryContext(ctx,
		`SELECT payload, unallocated_amount FROM payment_entries`+where+` ORDER BY posting_date, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment entries: %w", err)
	}
	return scanPayments(rows)
}

// ListInvoices lists invoices by posting date.
func (s *DocumentStore) ListInvoices(ctx context.Context, r DateRange) ([]erp.Invoice, error) {
	where, args := r.where("posting_date")
	rows, err := s.conn.db.QueryContext(ctx,
		`SELECT payload, outstanding FROM invoices`+where+` ORDER BY posting_date, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return scanInvoices(rows)
}

// scanInvoices decodes (payload, outstanding) rows and closes rows.
// The outstanding column wins over the payload since it is updated in place.
func scanInvoices(rows *sql.Rows) ([]erp.Invoice, error) {
	defer rows.Close()

	var invoices []erp.Invoice
	for rows.Next() {
		var payload, outstanding string
		if err := rows.Scan(&payload, &outstanding); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		var inv erp.Invoice
		if err := json.Unmarshal([]byte(payload), &inv); err != nil {
			return nil, fmt.Errorf("failed to decode invoice: %w", err)
		}
		amount, err := decimal.NewFromString(outstanding)
		if err != nil {
			return nil, fmt.Errorf("invalid outstanding amount %q on %s: %w", outstanding, inv.Name, err)
		}
		inv.Outstanding = amount
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// scanPayments decodes (payload, unallocated_amount) rows and closes rows.
func scanPayments(rows *sql.Rows) ([]erp.PaymentEntry, error) {
	defer rows.Close()

	var payments []erp.PaymentEntry
	for rows.Next() {
		var payload, unallocated string
		if err := rows.Scan(&payload, &unallocated); err != nil {
			return nil, fmt.Errorf("failed to scan payment entry: %w", err)
		}
		var pe erp.PaymentEntry
		if err := json.Unmarshal([]byte(payload), &pe); err != nil {
			return nil, fmt.Errorf("failed to decode payment entry: %w", err)
		}
		amount, err := decimal.NewFromString(unallocated)
		if err != nil {
			return nil, fmt.Errorf("invalid unallocated amount %q on %s: %w", unallocated, pe.Name, err)
		}
		pe.UnallocatedAmount = amount
		payments = append(payments, pe)
	}
	return payments, rows.Err()
}

// Reset removes all imported documents, parties, naming counters, history
// and runs. Mappings and metadata other than the last import date are kept.
func (c *Connection) Reset(ctx context.Context) error {
	tables := []string{
		"journal_entries", "payment_entries", "invoices",
		"parties", "naming_series", "import_history", "import_runs",
	}
	return c.Transaction(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_metadata WHERE key = ?`, MetaLastImportDate); err != nil {
			return fmt.Errorf("failed to clear metadata: %w", err)
		}
		return nil
	})
}
