package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type stubRepo struct {
	rows       []TimelineRow
	lastFilter TimelineFilters
	lastLimit  int
	lastOffset int
}

func (s *stubRepo) Window(_ context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, int, error) {
	s.lastFilter, s.lastLimit, s.lastOffset = filters, limit, offset
	if offset >= len(s.rows) {
		return nil, len(s.rows), nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], len(s.rows), nil
}

func (s *stubRepo) All(_ context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error) {
	s.lastFilter, s.lastLimit = filters, limit
	return s.rows, nil
}

func sampleRows(n int) []TimelineRow {
	actor := int64(7)
	rows := make([]TimelineRow, n)
	for i := range rows {
		rows[i] = TimelineRow{
			ID:       int64(i + 1),
			At:       time.Date(2025, 3, 14, 10, i, 0, 0, time.UTC),
			ActorID:  &actor,
			Action:   "document.post",
			Entity:   "document",
			EntityID: "doc-1",
			Meta:     map[string]any{"kind": "PURCHASE"},
		}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(5)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{CompanyID: 1, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.Equal(t, 2, repo.lastOffset)
	require.Equal(t, shared.Pagination{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}, result.Paging)
	require.True(t, result.Paging.HasNext())

	result, err = svc.Timeline(context.Background(), TimelineFilters{CompanyID: 1, PageSize: 1000})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, repo.lastLimit)
	require.False(t, result.Paging.HasNext())

	result, err = svc.Timeline(context.Background(), TimelineFilters{CompanyID: 1, Page: 9})
	require.NoError(t, err)
	require.NotNil(t, result.Rows)
	require.Empty(t, result.Rows)
}

func TestTimelineRejectsInvertedRange(t *testing.T) {
	svc := NewService(&stubRepo{})
	_, err := svc.Timeline(context.Background(), TimelineFilters{
		CompanyID: 1,
		From:      time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	appErr, ok := shared.AsError(err)
	require.True(t, ok)
	require.Equal(t, "INVALID_FILTER", appErr.Code)

	_, err = svc.Export(context.Background(), TimelineFilters{})
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestWriteCSV(t *testing.T) {
	rows := sampleRows(1)
	rows = append(rows, TimelineRow{At: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), Action: "ledger.repost", Entity: "ledger", EntityID: "1"})
	body, err := WriteCSV(rows)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, []string{"2025-03-14T10:00:00Z", "7", "document.post", "document", "doc-1", `{"kind":"PURCHASE"}`}, records[1])
	require.Equal(t, "", records[2][1])
	require.Equal(t, "", records[2][5])
}

func newRouter(repo Repository) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithTenant(r.Context(), shared.Tenant{TenantID: 1, CompanyID: 3, ActorID: 7})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/audit", h.MountRoutes)
	return r
}

func TestTimelineEndpoint(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(3)}
	router := newRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/audit?entity=document&from=2025-03-01&to=2025-03-31&pageSize=2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var payload Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Rows, 2)
	require.Equal(t, 2, payload.Paging.TotalPages)
	require.Equal(t, int64(3), repo.lastFilter.CompanyID)
	require.Equal(t, "document", repo.lastFilter.Entity)
	require.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), repo.lastFilter.To)

	for _, query := range []string{"page=0", "pageSize=x", "from=03/01/2025"} {
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit?"+query, nil))
		require.Equal(t, http.StatusBadRequest, rr.Code, query)
	}
}

func TestExportEndpoint(t *testing.T) {
	router := newRouter(&stubRepo{rows: sampleRows(2)})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "audit-log.csv")
	require.Equal(t, 3, strings.Count(rr.Body.String(), "\n"))
}
