package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// CreateLedger stores a ledger. Codes must be unique.
func (s *Store) CreateLedger(l *eboekhouden.Ledger) (*eboekhouden.Ledger, error) {
	if strings.TrimSpace(l.Code) == "" || strings.TrimSpace(l.Description) == "" {
		return nil, fmt.Errorf("%w: code and description are required", ErrInvalid)
	}

	existing, err := s.ListLedgers()
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Code == l.Code && e.ID != l.ID {
			return nil, fmt.Errorf("%w: ledger code %s already exists", ErrInvalid, l.Code)
		}
	}

	created := *l
	if created.ID != 0 {
		err = s.put(BucketLedgers, created.ID, &created)
	} else {
		_, err = s.insert(BucketLedgers, func(id int64) { created.ID = id }, &created)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save ledger: %w", err)
	}
	return &created, nil
}

// ListLedgers returns all ledgers in ID order.
func (s *Store) ListLedgers() ([]eboekhouden.Ledger, error) {
	ledgers := []eboekhouden.Ledger{}
	err := s.each(BucketLedgers, func(data []byte) error {
		var l eboekhouden.Ledger
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("failed to unmarshal ledger: %w", err)
		}
		ledgers = append(ledgers, l)
		return nil
	})
	return ledgers, err
}
