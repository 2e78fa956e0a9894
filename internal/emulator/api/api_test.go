package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verenigingen/eboekhouden-sync/internal/emulator/api"
	"github.com/verenigingen/eboekhouden-sync/internal/emulator/session"
	"github.com/verenigingen/eboekhouden-sync/internal/emulator/store"
	"github.com/verenigingen/eboekhouden-sync/pkg/db"
	"github.com/verenigingen/eboekhouden-sync/pkg/eboekhouden"
	"github.com/verenigingen/eboekhouden-sync/pkg/erp"
	"github.com/verenigingen/eboekhouden-sync/pkg/importer"
	"github.com/verenigingen/eboekhouden-sync/pkg/mapping"
	"github.com/verenigingen/eboekhouden-sync/pkg/parties"
)

type testServer struct {
	server   *httptest.Server
	store    *store.Store
	sessions *session.Manager
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "emulator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sessions := session.NewManager(st)
	server := httptest.NewServer(api.NewRouter(st, sessions))
	t.Cleanup(server.Close)

	return &testServer{server: server, store: st, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()

	resp := s.do(t, http.MethodPost, "/v1/session", "", eboekhouden.SessionRequest{AccessToken: session.DefaultAccessToken, Source: "test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess eboekhouden.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Equal(t, 3600, sess.ExpiresIn)
	return sess.Token
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)
	resp := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, http.MethodPost, "/v1/session", "", eboekhouden.SessionRequest{AccessToken: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var apiErr eboekhouden.ErrorResponse
	decode(t, resp, &apiErr)
	assert.Equal(t, "API_SESSION_001", apiErr.Code)

	resp = s.do(t, http.MethodGet, "/v1/mutation", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := s.login(t)
	resp = s.do(t, http.MethodGet, "/v1/mutation", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/v1/session", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/mutation", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMutationEndpoints(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t)

	resp := s.do(t, http.MethodPost, "/v1/mutation", token, eboekhouden.Mutation{
		Type: eboekhouden.MutationMoneyReceived, Date: "2024-05-01", LedgerID: 10,
		Amount: decimal.NewFromInt(25),
		Rows:   []eboekhouden.MutationRow{{LedgerID: 80, Amount: decimal.NewFromInt(25)}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]int64
	decode(t, resp, &created)
	id := created["id"]
	assert.Equal(t, int64(1), id)

	resp = s.do(t, http.MethodPost, "/v1/mutation", token, eboekhouden.Mutation{Type: 42, Date: "2024-05-01", LedgerID: 10})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/mutation/1", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m eboekhouden.Mutation
	decode(t, resp, &m)
	require.Len(t, m.Rows, 1)
	assert.Equal(t, "25", m.Rows[0].Amount.String())

	resp = s.do(t, http.MethodGet, "/v1/mutation/99", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/mutation?date[gte]=2024-05-01&type=5", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page eboekhouden.MutationsResponse
	decode(t, resp, &page)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Items, 1)
	assert.Empty(t, page.Items[0].Rows)

	resp = s.do(t, http.MethodGet, "/v1/mutation?type=9", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/v1/mutation?limit=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLedgerAndRelationEndpoints(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t)

	resp := s.do(t, http.MethodPost, "/v1/ledger", token, eboekhouden.Ledger{Code: "1100", Description: "Bank"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = s.do(t, http.MethodPost, "/v1/ledger", token, eboekhouden.Ledger{Code: "1100", Description: "Bank"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/ledger", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ledgers eboekhouden.LedgersResponse
	decode(t, resp, &ledgers)
	assert.Equal(t, 1, ledgers.Count)

	resp = s.do(t, http.MethodPost, "/v1/relation", token, eboekhouden.Relation{Code: "JAN", Name: "Jansen"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rel eboekhouden.Relation
	decode(t, resp, &rel)

	resp = s.do(t, http.MethodGet, "/v1/relation/"+jsonID(rel.ID), token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.do(t, http.MethodGet, "/v1/relation/404", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func jsonID(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func TestClientAgainstEmulator(t *testing.T) {
	s := setupTestServer(t)
	for i := 0; i < 7; i++ {
		_, err := s.store.CreateMutation(&eboekhouden.Mutation{
			Type: eboekhouden.MutationMoneySent, Date: "2024-06-01", LedgerID: 10,
			Amount: decimal.NewFromInt(int64(i + 1)),
		})
		require.NoError(t, err)
	}

	client := eboekhouden.NewClient(eboekhouden.ClientConfig{APIURL: s.server.URL, APIToken: session.DefaultAccessToken})
	ctx := context.Background()

	mutations, err := client.FetchAllMutations(ctx, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, mutations, 7)

	_, err = client.GetRelation(ctx, 12)
	require.Error(t, err)
	assert.True(t, eboekhouden.IsNotFound(err))

	// The server expires the session; the client renews it transparently.
	s.sessions.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = client.GetMutation(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, client.Logout(ctx))

	bad := eboekhouden.NewClient(eboekhouden.ClientConfig{APIURL: s.server.URL, APIToken: "nope"})
	_, err = bad.ListLedgers(ctx)
	require.Error(t, err)
}

func TestImportFromEmulator(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.store.Apply(&store.Seed{
		Relations: []eboekhouden.Relation{{ID: 1, Code: "JAN", Name: "Jansen"}},
		Mutations: []eboekhouden.Mutation{
			{
				ID: 1, Type: eboekhouden.MutationSalesInvoice, Date: "2024-01-10",
				LedgerID: 13, RelationID: 1, InvoiceNumber: "F1",
				Rows: []eboekhouden.MutationRow{{LedgerID: 80, Amount: decimal.NewFromInt(100)}},
			},
			{
				ID: 2, Type: eboekhouden.MutationSalesInvoice, Date: "2024-01-20",
				LedgerID: 13, RelationID: 1, InvoiceNumber: "F2",
				Rows: []eboekhouden.MutationRow{{LedgerID: 80, Amount: decimal.NewFromInt(50)}},
			},
			{
				ID: 3, Type: eboekhouden.MutationCustomerPayment, Date: "2024-02-01",
				LedgerID: 10, RelationID: 1, InvoiceNumber: "F1, F2", Amount: decimal.NewFromInt(150),
				Rows: []eboekhouden.MutationRow{{LedgerID: 13, Amount: decimal.NewFromInt(150)}},
			},
		},
	}))

	conn, err := db.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	mapper := mapping.New([]mapping.LedgerMapping{
		{LedgerID: 10, Code: "1100", Account: "1100 - Bank", AccountType: erp.AccountBank, RootType: erp.RootAsset},
		{LedgerID: 13, Code: "1300", Account: "1300 - Debiteuren", AccountType: erp.AccountReceivable, RootType: erp.RootAsset},
		{LedgerID: 80, Code: "8000", Account: "8000 - Contributie", AccountType: erp.AccountIncome, RootType: erp.RootIncome},
	}, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := eboekhouden.NewClient(eboekhouden.ClientConfig{APIURL: s.server.URL, APIToken: session.DefaultAccessToken})
	resolver := parties.NewResolver(client, db.NewPartyStore(conn), logger)
	imp := importer.New(conn, mapper, resolver, client, importer.Options{RoundingTolerance: importer.DefaultRoundingTolerance}, logger)

	ctx := context.Background()
	mutations, err := client.FetchAllMutations(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, mutations, 3)
	assert.Empty(t, mutations[0].Rows)

	summary, err := imp.Import(ctx, mutations)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Imported, summary.Failures)
	assert.Equal(t, 0, summary.Overpayments)

	invoices, err := db.NewDocumentStore(conn).ListInvoices(ctx, db.DateRange{})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	for _, inv := range invoices {
		assert.Equal(t, "Jansen", inv.Party)
		assert.True(t, inv.Outstanding.IsZero(), inv.BillNo)
	}

	stored, err := db.NewPartyStore(conn).List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "JAN", stored[0].Code)

	again, err := imp.Import(ctx, mutations)
	require.NoError(t, err)
	assert.Equal(t, 3, again.AlreadyImported)
	assert.Equal(t, 0, again.Imported)
}
