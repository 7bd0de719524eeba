package documents

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type claim struct{ key, module string }

// memoryKeys mirrors the (key, module) primary key of idempotency_keys.
type memoryKeys struct{ claims map[claim]bool }

func newMemoryKeys() *memoryKeys { return &memoryKeys{claims: map[claim]bool{}} }

func (m *memoryKeys) CheckAndInsert(_ context.Context, key, module string) error {
	c := claim{key, module}
	if m.claims[c] {
		return shared.ErrIdempotencyConflict
	}
	m.claims[c] = true
	return nil
}

func (m *memoryKeys) Delete(_ context.Context, key, module string) error {
	delete(m.claims, claim{key, module})
	return nil
}

func newTestRouter(f *fixture, keys KeyStore) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, keys)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithTenant(r.Context(), shared.Tenant{TenantID: 1, CompanyID: company, ActorID: 7})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	r.Post("/ledger/repost", h.Repost)
	return r
}

const purchaseBody = `{"documentDate":"2025-03-14","series":"ER","number":"%s","counterpartyName":"Lieferant GmbH",
"warehouseName":"Main","currencyCode":"EUR","items":[{"itemName":"Widget","itemCode":"W-1","quantity":"10","priceWithoutVat":"100","vatRate":"19"}],
"journal":{"debitAccountId":10,"creditAccountId":11}}`

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPostPurchaseEndpoint(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, nil)

	rr := do(t, router, http.MethodPost, "/purchases", strings.Replace(purchaseBody, "%s", "1", 1), nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var payload struct {
		Document struct {
			ID          string `json:"id"`
			TotalAmount string `json:"totalAmount"`
			Status      string `json:"status"`
		} `json:"document"`
		JournalEntry struct {
			Lines []json.RawMessage `json:"lines"`
		} `json:"journalEntry"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, "1000", payload.Document.TotalAmount)
	require.Equal(t, "DRAFT", payload.Document.Status)
	require.Len(t, payload.JournalEntry.Lines, 2)

	rr = do(t, router, http.MethodGet, "/documents/"+payload.Document.ID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodPost, "/documents/"+payload.Document.ID+"/cancel", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"linesCount":2`)

	rr = do(t, router, http.MethodPost, "/documents/"+payload.Document.ID+"/cancel", "", nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"ALREADY_CANCELLED"`)
}

func TestPostEndpointRejectsInvalidBody(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, nil)

	rr := do(t, router, http.MethodPost, "/sales", `{"series":"AR"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = do(t, router, http.MethodGet, "/documents/not-a-uuid", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIdempotencyKeyDeduplicatesPosting(t *testing.T) {
	f := newFixture()
	keys := newMemoryKeys()
	router := newTestRouter(f, keys)
	header := map[string]string{IdempotencyHeader: "req-1"}

	rr := do(t, router, http.MethodPost, "/purchases", strings.Replace(purchaseBody, "%s", "1", 1), header)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.True(t, keys.claims[claim{shared.IdempotencyKey(company, "req-1"), "documents.purchase"}])

	rr = do(t, router, http.MethodPost, "/purchases", strings.Replace(purchaseBody, "%s", "2", 1), header)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "IDEMPOTENCY_CONFLICT")
	require.Len(t, f.repo.state.documents, 1)

	failing := map[string]string{IdempotencyHeader: "req-2"}
	rr = do(t, router, http.MethodPost, "/purchases", strings.Replace(purchaseBody, "%s", "1", 1), failing)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "DUPLICATE_DOCUMENT")
	require.False(t, keys.claims[claim{shared.IdempotencyKey(company, "req-2"), "documents.purchase"}])
}

func TestFailedPostKeepsOtherKindsClaim(t *testing.T) {
	f := newFixture()
	keys := newMemoryKeys()
	router := newTestRouter(f, keys)
	header := map[string]string{IdempotencyHeader: "shared-1"}
	scoped := shared.IdempotencyKey(company, "shared-1")
	keys.claims[claim{scoped, "documents.sale"}] = true

	// The keyed request fails as a duplicate of purchase 1.
	rr := do(t, router, http.MethodPost, "/purchases", strings.Replace(purchaseBody, "%s", "1", 1), nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = do(t, router, http.MethodPost, "/purchases", strings.Replace(purchaseBody, "%s", "1", 1), header)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "DUPLICATE_DOCUMENT")

	require.False(t, keys.claims[claim{scoped, "documents.purchase"}])
	require.True(t, keys.claims[claim{scoped, "documents.sale"}])
}

func TestRepostEndpoint(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, nil)
	rr := do(t, router, http.MethodPost, "/purchases", strings.Replace(purchaseBody, "%s", "1", 1), nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, router, http.MethodPost, "/ledger/repost", `{"from":"2025-03-01","to":"2025-03-31"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"deletedEntries":1`)
	require.Contains(t, rr.Body.String(), `"recreatedEntries":1`)

	rr = do(t, router, http.MethodPost, "/ledger/repost", `{"from":"2025-03-31","to":"2025-03-01"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_RANGE")
}
