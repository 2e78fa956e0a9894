package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// Seed is the layout of a seed file.
type Seed struct {
	Ledgers   []eboekhouden.Ledger   `json:"ledgers"`
	Relations []eboekhouden.Relation `json:"relations"`
	Mutations []eboekhouden.Mutation `json:"mutations"`
}

// LoadSeedFile stores the contents of a JSON seed file.
func (s *Store) LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	return &seed, s.Apply(&seed)
}

// Apply stores ledgers, relations and mutations of a seed.
func (s *Store) Apply(seed *Seed) error {
	for i := range seed.Ledgers {
		if _, err := s.CreateLedger(&seed.Ledgers[i]); err != nil {
			return fmt.Errorf("ledger %s: %w", seed.Ledgers[i].Code, err)
		}
	}
	for i := range seed.Relations {
		if _, err := s.CreateRelation(&seed.Relations[i]); err != nil {
			return fmt.Errorf("relation %s: %w", seed.Relations[i].Code, err)
		}
	}
	for i := range seed.Mutations {
		if _, err := s.CreateMutation(&seed.Mutations[i]); err != nil {
			return fmt.Errorf("mutation %d: %w", seed.Mutations[i].ID, err)
		}
	}
	return nil
}
