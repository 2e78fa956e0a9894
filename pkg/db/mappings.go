package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
)

// MappingStore persists ledger and VAT mappings.
type MappingStore struct {
	conn *Connection
}

// NewMappingStore creates a new MappingStore instance.
func NewMappingStore(conn *Connection) *MappingStore {
	return &MappingStore{conn: conn}
}

// Import upserts all mappings of a mapping file in one transaction.
func (s *MappingStore) Import(ctx context.Context, file *mapping.File) (int, error) {
	count := 0
	err := s.conn.Transaction(ctx, func(tx *sql.Tx) error {
		for _, l := range file.Ledgers {
			if err := s.UpsertLedger(ctx, tx, l); err != nil {
				return err
			}
			count++
		}
		for _, v := range file.VatCodes {
			if err := s.UpsertVat(ctx, tx, v); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpsertLedger inserts or replaces a ledger mapping.
func (s *MappingStore) UpsertLedger(ctx context.Context, q Querier, m mapping.LedgerMapping) error {
	if q == nil {
		q = s.conn.db
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_mappings (ledger_id, code, description, account, account_type, root_type)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ledger_id) DO UPDATE SET
			code = excluded.code,
			description = excluded.description,
			account = excluded.account,
			account_type = excluded.account_type,
			root_type = excluded.root_type,
			updated_at = CURRENT_TIMESTAMP`,
		m.LedgerID, m.Code, m.Description, m.Account, string(m.AccountType), string(m.RootType),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping of ledger %d: %w", m.LedgerID, err)
	}
	return nil
}

// UpsertVat inserts or replaces a VAT code mapping.
func (s *MappingStore) UpsertVat(ctx context.Context, q Querier, m mapping.VatMapping) error {
	if q == nil {
		q = s.conn.db
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO vat_mappings (code, account, rate)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			account = excluded.account,
			rate = excluded.rate,
			updated_at = CURRENT_TIMESTAMP`,
		m.Code, m.Account, m.Rate.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert VAT mapping %s: %w", m.Code, err)
	}
	return nil
}

// ListLedgers returns all ledger mappings ordered by code.
func (s *MappingStore) ListLedgers(ctx context.Context) ([]mapping.LedgerMapping, error) {
	rows, err := s.conn.db.QueryContext(ctx, `
		SELECT ledger_id, code, description, account, account_type, root_type
		FROM ledger_mappings ORDER BY code, ledger_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger mappings: %w", err)
	}
	defer rows.Close()

	var result []mapping.LedgerMapping
	for rows.Next() {
		var m mapping.LedgerMapping
		var accountType, rootType string
		if err := rows.Scan(&m.LedgerID, &m.Code, &m.Description, &m.Account, &accountType, &rootType); err != nil {
			return nil, fmt.Errorf("failed to scan ledger mapping: %w", err)
		}
		m.AccountType = erp.AccountType(accountType)
		m.RootType = erp.RootType(rootType)
		result = append(result, m)
	}
	return result, rows.Err()
}

// ListVat returns all VAT mappings ordered by code.
func (s *MappingStore) ListVat(ctx context.Context) ([]mapping.VatMapping, error) {
	rows, err := s.conn.db.QueryContext(ctx, `SELECT code, account, rate FROM vat_mappings ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list VAT mappings: %w", err)
	}
	defer rows.Close()

	var result []mapping.VatMapping
	for rows.Next() {
		var m mapping.VatMapping
		var rate string
		if err := rows.Scan(&m.Code, &m.Account, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan VAT mapping: %w", err)
		}
		if m.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("invalid rate %q for VAT code %s: %w", rate, m.Code, err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// LoadMapper builds a mapping.Mapper from the stored mappings.
func (s *MappingStore) LoadMapper(ctx context.Context) (*mapping.Mapper, error) {
	ledgers, err := s.ListLedgers(ctx)
	if err != nil {
		return nil, err
	}
	vat, err := s.ListVat(ctx)
	if err != nil {
		return nil, err
	}
	return mapping.New(ledgers, vat), nil
}
