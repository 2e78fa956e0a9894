package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of processing a mutation.
type Status string

const (
	StatusImported Status = "imported"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// HistoryRecord represents an import history record.
type HistoryRecord struct {
	ID           int64
	MutationID   int64
	MutationType int
	MutationDate string
	Amount       string
	Status       Status
	DocumentType string
	DocumentName string
	Message      string
	RunID        string
	Attempts     int
	ImportedAt   time.Time
}

// RunRecord summarizes one import run.
type RunRecord struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Imported     int
	Skipped      int
	Failed       int
	Overpayments int
}

// ImportHistory manages import history operations.
type ImportHistory struct {
	conn *Connection
}

// NewImportHistory creates a new ImportHistory instance.
func NewImportHistory(conn *Connection) *ImportHistory {
	return &ImportHistory{conn: conn}
}

// Record records the outcome for a mutation.
// If the mutation was seen before, the row is updated and attempts is incremented.
// q may be a transaction so the record commits together with the document.
func (h *ImportHistory) Record(ctx context.Context, q Querier, record HistoryRecord) error {
	if q == nil {
		q = h.conn.db
	}

	query := `
		INSERT INTO import_history (mutation_id, mutation_type, mutation_date, amount, status,
			document_type, document_name, message, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mutation_id) DO UPDATE SET
			mutation_type = excluded.mutation_type,
			mutation_date = excluded.mutation_date,
			amount = excluded.amount,
			status = excluded.status,
			document_type = excluded.document_type,
			document_name = excluded.document_name,
			message = excluded.message,
			run_id = excluded.run_id,
			attempts = import_history.attempts + 1,
			imported_at = CURRENT_TIMESTAMP
	`

	_, err := q.ExecContext(ctx, query,
		record.MutationID,
		record.MutationType,
		record.MutationDate,
		record.Amount,
		string(record.Status),
		record.DocumentType,
		record.DocumentName,
		record.Message,
		record.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to record import of mutation %d: %w", record.MutationID, err)
	}

	return nil
}

const historyColumns = `id, mutation_id, mutation_type, mutation_date, amount, status,
	document_type, document_name, message, run_id, attempts, imported_at`

func scanHistory(scan func(dest ...interface{}) error) (*HistoryRecord, error) {
	var record HistoryRecord
	var status string
	if err := scan(
		&record.ID,
		&record.MutationID,
		&record.MutationType,
		&record.MutationDate,
		&record.Amount,
		&status,
		&record.DocumentType,
		&record.DocumentName,
		&record.Message,
		&record.RunID,
		&record.Attempts,
		&record.ImportedAt,
	); err != nil {
		return nil, err
	}
	record.Status = Status(status)
	return &record, nil
}

// Get retrieves the history record of a mutation.
// Returns nil if the mutation was never processed.
func (h *ImportHistory) Get(ctx context.Context, mutationID int64) (*HistoryRecord, error) {
	row := h.conn.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM import_history WHERE mutation_id = ?`, mutationID)

	record, err := scanHistory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import record: %w", err)
	}
	return record, nil
}

// IsImported checks if a mutation has been imported successfully.
func (h *ImportHistory) IsImported(ctx context.Context, mutationID int64) (bool, error) {
	var count int
	err := h.conn.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM import_history WHERE mutation_id = ? AND status = ?`,
		mutationID, string(StatusImported)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check if imported: %w", err)
	}
	return count > 0, nil
}

// ListByStatus lists history records with the given status, newest first.
func (h *ImportHistory) ListByStatus(ctx context.Context, status Status, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.conn.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM import_history WHERE status = ?
		 ORDER BY mutation_date DESC, mutation_id DESC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import records: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		record, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import record: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// Delete deletes the history record of a mutation.
// Use case: force re-import of a specific mutation.
func (h *ImportHistory) Delete(ctx context.Context, q Querier, mutationID int64) (bool, error) {
	if q == nil {
		q = h.conn.db
	}

	result, err := q.ExecContext(ctx, `DELETE FROM import_history WHERE mutation_id = ?`, mutationID)
	if err != nil {
		return false, fmt.Errorf("failed to delete import record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// RecordRun stores the summary of an import run.
func (h *ImportHistory) RecordRun(ctx context.Context, run RunRecord) error {
	_, err := h.conn.db.ExecContext(ctx, `
		INSERT INTO import_runs (run_id, started_at, finished_at, imported, skipped, failed, overpayments)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Imported, run.Skipped, run.Failed, run.Overpayments,
	)
	if err != nil {
		return fmt.Errorf("failed to record import run: %w", err)
	}
	return nil
}

// LastRun returns the most recent import run, or nil if there is none.
func (h *ImportHistory) LastRun(ctx context.Context) (*RunRecord, error) {
	var run RunRecord
	err := h.conn.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, finished_at, imported, skipped, failed, overpayments
		FROM import_runs ORDER BY started_at DESC LIMIT 1`).Scan(
		&run.RunID, &run.StartedAt, &run.FinishedAt,
		&run.Imported, &run.Skipped, &run.Failed, &run.Overpayments,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return &run, nil
}

// Stats represents import statistics.
type Stats struct {
	Imported     int
	Skipped      int
	Failed       int
	ByDocument   map[string]int
	LastImport   sql.NullString
	TotalParties int
}

// GetStats retrieves import statistics.
func (h *ImportHistory) GetStats(ctx context.Context) (*Stats, error) {
	stats := Stats{ByDocument: make(map[string]int)}

	rows, err := h.conn.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM import_history GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count import records: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		switch Status(status) {
		case StatusImported:
			stats.Imported = count
		case StatusSkipped:
			stats.Skipped = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	rows.Close()

	rows, err = h.conn.db.QueryContext(ctx, `
		SELECT document_type, COUNT(*) FROM import_history
		WHERE status = 'imported' GROUP BY document_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	for rows.Next() {
		var docType string
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan document count: %w", err)
		}
		stats.ByDocument[docType] = count
	}
	rows.Close()

	err = h.conn.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parties`).Scan(&stats.TotalParties)
	if err != nil {
		return nil, fmt.Errorf("failed to count parties: %w", err)
	}

	err = h.conn.db.QueryRowContext(ctx, `SELECT MAX(imported_at) FROM import_history`).Scan(&stats.LastImport)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last import time: %w", err)
	}

	return &stats, nil
}

// Metadata keys.
const (
	MetaLastImportDate = "last_import_date"
)

// GetMetadata retrieves a metadata value.
func (h *ImportHistory) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := h.conn.db.QueryRowContext(ctx, `SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// ResumeDate returns the date an incremental import starts from: the last
// imported mutation date, or the date of the oldest failed mutation when that
// is earlier, so failures are fetched and retried. "" means no import ran yet.
func (h *ImportHistory) ResumeDate(ctx context.Context) (string, error) {
	last, err := h.GetMetadata(ctx, MetaLastImportDate)
	if err != nil {
		return "", err
	}
	if last == "" {
		return "", nil
	}

	var failed sql.NullString
	err = h.conn.db.QueryRowContext(ctx,
		`SELECT MIN(mutation_date) FROM import_history WHERE status = ?`, string(StatusFailed)).Scan(&failed)
	if err != nil {
		return "", fmt.Errorf("failed to get oldest failed mutation: %w", err)
	}

	if failed.Valid && failed.String != "" && failed.String < last {
		return failed.String, nil
	}
	return last, nil
}

// SetMetadata sets a metadata value.
func (h *ImportHistory) SetMetadata(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := h.conn.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
