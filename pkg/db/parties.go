package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

// Party is a customer or supplier created from an e-Boekhouden relation.
type Party struct {
	RelationID int64
	PartyType  erp.PartyType
	Name       string
	Code       string
}

// PartyStore persists parties.
type PartyStore struct {
	conn *Connection
}

// NewPartyStore creates a new PartyStore instance.
func NewPartyStore(conn *Connection) *PartyStore {
	return &PartyStore{conn: conn}
}

// Find returns the party of a relation, or nil if none was created yet.
func (s *PartyStore) Find(ctx context.Context, relationID int64, partyType erp.PartyType) (*Party, error) {
	p := Party{RelationID: relationID, PartyType: partyType}
	err := s.conn.db.QueryRowContext(ctx,
		`SELECT name, code FROM parties WHERE relation_id = ? AND party_type = ?`,
		relationID, string(partyType)).Scan(&p.Name, &p.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find party for relation %d: %w", relationID, err)
	}
	return &p, nil
}

// NameExists checks whether a party name is taken within its type.
func (s *PartyStore) NameExists(ctx context.Context, partyType erp.PartyType, name string) (bool, error) {
	var count int
	err := s.conn.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parties WHERE party_type = ? AND name = ?`,
		string(partyType), name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check party name: %w", err)
	}
	return count > 0, nil
}

// Insert stores a new party.
func (s *PartyStore) Insert(ctx context.Context, p Party) error {
	_, err := s.conn.db.ExecContext(ctx,
		`INSERT INTO parties (relation_id, party_type, name, code) VALUES (?, ?, ?, ?)`,
		p.RelationID, string(p.PartyType), p.Name, p.Code)
	if err != nil {
		return fmt.Errorf("failed to insert party %s: %w", p.Name, err)
	}
	return nil
}

// List returns all parties ordered by type and name.
func (s *PartyStore) List(ctx context.Context) ([]Party, error) {
	rows, err := s.conn.db.QueryContext(ctx,
		`SELECT relation_id, party_type, name, code FROM parties ORDER BY party_type, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		var p Party
		var partyType string
		if err := rows.Scan(&p.RelationID, &partyType, &p.Name, &p.Code); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		p.PartyType = erp.PartyType(partyType)
		parties = append(parties, p)
	}
	return parties, rows.Err()
}
