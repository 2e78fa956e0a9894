package store

import (
	"fmt"

	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
)

// CreateRelation stores a relation.
func (s *Store) CreateRelation(r *eboekhouden.Relation) (*eboekhouden.Relation, error) {
	if r.Name == "" && r.Code == "" {
		return nil, fmt.Errorf("%w: name or code is required", ErrInvalid)
	}

	created := *r
	var err error
	if created.ID != 0 {
		err = s.put(BucketRelations, created.ID, &created)
	} else {
		_, err = s.insert(BucketRelations, func(id int64) { created.ID = id }, &created)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save relation: %w", err)
	}
	return &created, nil
}

// GetRelation retrieves a relation by ID.
func (s *Store) GetRelation(id int64) (*eboekhouden.Relation, error) {
	var r eboekhouden.Relation
	if err := s.get(BucketRelations, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
