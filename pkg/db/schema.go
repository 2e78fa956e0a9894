// Package db provides SQLite persistence for import history, mappings,
// parties and the imported ledger documents.
package db

import "fmt"

// Schema defines the SQL statements to create database tables.
// Amounts are stored as decimal strings.
const Schema = `
-- Import history
-- One row per e-Boekhouden mutation that was processed
CREATE TABLE IF NOT EXISTS import_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mutation_id INTEGER NOT NULL UNIQUE,
    mutation_type INTEGER NOT NULL,
    mutation_date TEXT NOT NULL,       -- YYYY-MM-DD
    amount TEXT NOT NULL,
    status TEXT NOT NULL,              -- 'imported', 'skipped' or 'failed'
    document_type TEXT NOT NULL DEFAULT '',
    document_name TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT '',
    attempts INTEGER NOT NULL DEFAULT 1,
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_import_history_status
    ON import_history(status);

CREATE INDEX IF NOT EXISTS idx_import_history_date
    ON import_history(mutation_date);

-- Import runs
CREATE TABLE IF NOT EXISTS import_runs (
    run_id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    imported INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    overpayments INTEGER NOT NULL DEFAULT 0
);

-- Sync metadata table
-- Stores key-value metadata about import operations
CREATE TABLE IF NOT EXISTS sync_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Ledger and VAT mappings
CREATE TABLE IF NOT EXISTS ledger_mappings (
    ledger_id INTEGER PRIMARY KEY,
    code TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    account TEXT NOT NULL,
    account_type TEXT NOT NULL DEFAULT '',
    root_type TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS vat_mappings (
    code TEXT PRIMARY KEY,
    account TEXT NOT NULL,
    rate TEXT NOT NULL DEFAULT '0',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Customers and suppliers created from e-Boekhouden relations
CREATE TABLE IF NOT EXISTS parties (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    relation_id INTEGER NOT NULL,
    party_type TEXT NOT NULL,          -- 'Customer' or 'Supplier'
    name TEXT NOT NULL,
    code TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(relation_id, party_type),
    UNIQUE(party_type, name)
);

-- Naming series counters, e.g. 'ACC-JV-2024-'
CREATE TABLE IF NOT EXISTS naming_series (
    series TEXT PRIMARY KEY,
    current INTEGER NOT NULL
);

-- Ledger documents
CREATE TABLE IF NOT EXISTS journal_entries (
    name TEXT PRIMARY KEY,
    mutation_id INTEGER NOT NULL UNIQUE,
    voucher_type TEXT NOT NULL,
    posting_date TEXT NOT NULL,
    total TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_entries_date
    ON journal_entries(posting_date);

CREATE TABLE IF NOT EXISTS payment_entries (
    name TEXT PRIMARY KEY,
    mutation_id INTEGER NOT NULL UNIQUE,
    payment_type TEXT NOT NULL,
    posting_date TEXT NOT NULL,
    party_type TEXT NOT NULL,
    party TEXT NOT NULL,
    paid_amount TEXT NOT NULL,
    unallocated_amount TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_entries_party
    ON payment_entries(party_type, party);

CREATE TABLE IF NOT EXISTS invoices (
    name TEXT PRIMARY KEY,
    mutation_id INTEGER NOT NULL UNIQUE,
    kind TEXT NOT NULL,                -- 'Sales' or 'Purchase'
    posting_date TEXT NOT NULL,
    party TEXT NOT NULL,
    bill_no TEXT NOT NULL DEFAULT '',
    is_return INTEGER NOT NULL DEFAULT 0,
    grand_total TEXT NOT NULL,
    outstanding TEXT NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_party_bill
    ON invoices(kind, party, bill_no);
`

// columnMigration adds a column to a table created before the column existed.
type columnMigration struct {
	table      string
	column     string
	definition string
	backfill   string
}

var columnMigrations = []columnMigration{
	{
		table:      "invoices",
		column:     "is_return",
		definition: "INTEGER NOT NULL DEFAULT 0",
		backfill:   `UPDATE invoices SET is_return = 1 WHERE json_extract(payload, '$.is_return') = 1`,
	},
}

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist and adds missing columns.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.db.Exec(Schema); err != nil {
		return err
	}

	for _, m := range columnMigrations {
		var count int
		err := conn.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", m.table, err)
		}
		if count > 0 {
			continue
		}
		if _, err := conn.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.definition)); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", m.table, m.column, err)
		}
		if m.backfill != "" {
			if _, err := conn.db.Exec(m.backfill); err != nil {
				return fmt.Errorf("failed to backfill %s.%s: %w", m.table, m.column, err)
			}
		}
	}
	return nil
}
