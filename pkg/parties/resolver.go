// Package parties resolves e-Boekhouden relations to customer and supplier names.
package parties

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

// RelationFetcher fetches relations from e-Boekhouden.
type RelationFetcher interface {
	GetRelation(ctx context.Context, id int64) (*eboekhouden.Relation, error)
}

// Store persists parties.
type Store interface {
	Find(ctx context.Context, relationID int64, partyType erp.PartyType) (*db.Party, error)
	NameExists(ctx context.Context, partyType erp.PartyType, name string) (bool, error)
	Insert(ctx context.Context, p db.Party) error
}

type cacheKey struct {
	relationID int64
	partyType  erp.PartyType
}

// Resolver maps relations to party names, creating parties on first use.
// It is safe for concurrent use.
type Resolver struct {
	fetcher RelationFetcher
	store   Store
	logger  *slog.Logger

	mu        sync.Mutex
	names     map[cacheKey]string
	relations map[int64]*eboekhouden.Relation
}

// NewResolver creates a new Resolver.
func NewResolver(fetcher RelationFetcher, store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		fetcher:   fetcher,
		store:     store,
		logger:    logger,
		names:     make(map[cacheKey]string),
		relations: make(map[int64]*eboekhouden.Relation),
	}
}

// Resolve returns the party name of a relation for the given party type.
func (r *Resolver) Resolve(ctx context.Context, relationID int64, partyType erp.PartyType) (string, error) {
	if relationID <= 0 {
		return "", fmt.Errorf("invalid relation id %d", relationID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := cacheKey{relationID: relationID, partyType: partyType}
	if name, ok := r.names[key]; ok {
		return name, nil
	}

	existing, err := r.store.Find(ctx, relationID, partyType)
	if err != nil {
		return "", err
	}
	if existing != nil {
		r.names[key] = existing.Name
		return existing.Name, nil
	}

	relation, err := r.relation(ctx, relationID)
	if err != nil {
		return "", err
	}

	code := strings.TrimSpace(relation.Code)
	if code == "" {
		code = strconv.FormatInt(relationID, 10)
	}

	name, err := r.uniqueName(ctx, partyType, baseName(relation, code), code, relationID)
	if err != nil {
		return "", err
	}

	if err := r.store.Insert(ctx, db.Party{
		RelationID: relationID,
		PartyType:  partyType,
		Name:       name,
		Code:       code,
	}); err != nil {
		return "", err
	}

	r.logger.Info("Created party", "party_type", partyType, "party", name, "relation_id", relationID)
	r.names[key] = name
	return name, nil
}

func (r *Resolver) relation(ctx context.Context, id int64) (*eboekhouden.Relation, error) {
	if rel, ok := r.relations[id]; ok {
		return rel, nil
	}
	rel, err := r.fetcher.GetRelation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve relation %d: %w", id, err)
	}
	r.relations[id] = rel
	return rel, nil
}

func baseName(rel *eboekhouden.Relation, code string) string {
	if name := strings.TrimSpace(rel.Name); name != "" {
		return name
	}
	return "Relation " + code
}

// uniqueName appends the relation code, then the relation id, when the name
// is already used by another relation.
func (r *Resolver) uniqueName(ctx context.Context, partyType erp.PartyType, name, code string, relationID int64) (string, error) {
	candidates := []string{
		name,
		fmt.Sprintf("%s (%s)", name, code),
		fmt.Sprintf("%s (%s-%d)", name, code, relationID),
	}
	for _, candidate := range candidates {
		taken, err := r.store.NameExists(ctx, partyType, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free party name for relation %d (%s)", relationID, name)
}
