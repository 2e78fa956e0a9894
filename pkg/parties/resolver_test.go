package parties

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
)

type fakeFetcher struct {
	relations map[int64]eboekhouden.Relation
	calls     int
}

func (f *fakeFetcher) GetRelation(_ context.Context, id int64) (*eboekhouden.Relation, error) {
	f.calls++
	rel, ok := f.relations[id]
	if !ok {
		return nil, &eboekhouden.APIError{Status: http.StatusNotFound, Code: "NOT_FOUND"}
	}
	return &rel, nil
}

type memoryStore struct {
	parties []db.Party
}

func (m *memoryStore) Find(_ context.Context, relationID int64, partyType erp.PartyType) (*db.Party, error) {
	for _, p := range m.parties {
		if p.RelationID == relationID && p.PartyType == partyType {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) NameExists(_ context.Context, partyType erp.PartyType, name string) (bool, error) {
	for _, p := range m.parties {
		if p.PartyType == partyType && p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Insert(_ context.Context, p db.Party) error {
	m.parties = append(m.parties, p)
	return nil
}

func TestResolveCreatesAndCaches(t *testing.T) {
	fetcher := &fakeFetcher{relations: map[int64]eboekhouden.Relation{
		1: {ID: 1, Code: "JAN", Name: "Jansen"},
	}}
	store := &memoryStore{}
	r := NewResolver(fetcher, store, nil)
	ctx := context.Background()

	name, err := r.Resolve(ctx, 1, erp.PartyCustomer)
	require.NoError(t, err)
	assert.Equal(t, "Jansen", name)

	name, err = r.Resolve(ctx, 1, erp.PartyCustomer)
	require.NoError(t, err)
	assert.Equal(t, "Jansen", name)

	// same relation as supplier reuses the fetched relation
	name, err = r.Resolve(ctx, 1, erp.PartySupplier)
	require.NoError(t, err)
	assert.Equal(t, "Jansen", name)

	assert.Equal(t, 1, fetcher.calls)
	assert.Len(t, store.parties, 2)
}

func TestResolveNameCollisions(t *testing.T) {
	fetcher := &fakeFetcher{relations: map[int64]eboekhouden.Relation{
		1: {ID: 1, Code: "A1", Name: "Bakker"},
		2: {ID: 2, Code: "B2", Name: "Bakker"},
		3: {ID: 3, Name: ""},
	}}
	r := NewResolver(fetcher, &memoryStore{}, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, 1, erp.PartySupplier)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, 2, erp.PartySupplier)
	require.NoError(t, err)
	unnamed, err := r.Resolve(ctx, 3, erp.PartySupplier)
	require.NoError(t, err)

	assert.Equal(t, "Bakker", first)
	assert.Equal(t, "Bakker (B2)", second)
	assert.Equal(t, "Relation 3", unnamed)
}

func TestResolveUsesStoredParty(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := &memoryStore{parties: []db.Party{{RelationID: 9, PartyType: erp.PartyCustomer, Name: "Stored"}}}
	r := NewResolver(fetcher, store, nil)

	name, err := r.Resolve(context.Background(), 9, erp.PartyCustomer)
	require.NoError(t, err)
	assert.Equal(t, "Stored", name)
	assert.Zero(t, fetcher.calls)
}

func TestResolveUnknownRelation(t *testing.T) {
	r := NewResolver(&fakeFetcher{}, &memoryStore{}, nil)

	_, err := r.Resolve(context.Background(), 404, erp.PartyCustomer)
	require.Error(t, err)
	assert.True(t, eboekhouden.IsNotFound(err))

	var apiErr *eboekhouden.APIError
	assert.True(t, errors.As(err, &apiErr))
}
