package store

import (
	"encoding/json"
	"fmt"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// MutationFilter narrows ListMutations.
type MutationFilter struct {
	DateFrom string
	DateTo   string
	Type     *eboekhouden.MutationType
}

func (f MutationFilter) match(m *eboekhouden.Mutation) bool {
	if f.DateFrom != "" && m.Date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && m.Date > f.DateTo {
		return false
	}
	if f.Type != nil && m.Type != *f.Type {
		return false
	}
	return true
}

func validateMutation(m *eboekhouden.Mutation) error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown mutation type %d", ErrInvalid, m.Type)
	}
	if len(m.Date) != len("2006-01-02") {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	if m.LedgerID == 0 && m.Type != eboekhouden.MutationOpeningBalance && m.Type != eboekhouden.MutationMemorial {
		return fmt.Errorf("%w: ledgerId is required", ErrInvalid)
	}
	return nil
}

// CreateMutation stores a mutation. A zero ID gets the next sequence number.
func (s *Store) CreateMutation(m *eboekhouden.Mutation) (*eboekhouden.Mutation, error) {
	if err := validateMutation(m); err != nil {
		return nil, err
	}

	created := *m
	if created.ID != 0 {
		if err := s.put(BucketMutations, created.ID, &created); err != nil {
			return nil, fmt.Errorf("failed to save mutation: %w", err)
		}
		return &created, nil
	}

	if _, err := s.insert(BucketMutations, func(id int64) { created.ID = id }, &created); err != nil {
		return nil, fmt.Errorf("failed to save mutation: %w", err)
	}
	return &created, nil
}

// GetMutation retrieves a mutation with its rows.
func (s *Store) GetMutation(id int64) (*eboekhouden.Mutation, error) {
	var m eboekhouden.Mutation
	if err := s.get(BucketMutations, id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMutations returns one page of matching mutations in ID order and the
// total number of matches. Rows are omitted, as in the real listing.
func (s *Store) ListMutations(filter MutationFilter, offset, limit int) ([]eboekhouden.Mutation, int, error) {
	items := []eboekhouden.Mutation{}
	total := 0

	err := s.each(BucketMutations, func(data []byte) error {
		var m eboekhouden.Mutation
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("failed to unmarshal mutation: %w", err)
		}
		if !filter.match(&m) {
			return nil
		}
		total++
		if total <= offset || (limit > 0 && len(items) >= limit) {
			return nil
		}
		m.Rows = nil
		items = append(items, m)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
