package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

type stubChecker struct {
	limit  int
	issues []journals.IntegrityIssue
	err    error
}

func (s *stubChecker) CheckIntegrity(_ context.Context, limit int) ([]journals.IntegrityIssue, error) {
	s.limit = limit
	return s.issues, s.err
}

type stubCleaner struct{ retention time.Duration }

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return 4, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandleIntegrityCountsIssues(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	checker := &stubChecker{issues: []journals.IntegrityIssue{
		{EntryID: 1, CompanyID: 1, Problem: journals.ProblemUnbalanced, Debit: decimal.RequireFromString("10"), Credit: decimal.RequireFromString("9")},
		{EntryID: 2, CompanyID: 1, Problem: journals.ProblemUnbalanced},
		{EntryID: 3, CompanyID: 2, Problem: journals.ProblemNoLines},
	}}
	j := NewLedgerJobs(checker, nil, 0, metrics, quietLogger())

	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{Limit: 25})
	require.NoError(t, err)
	require.NoError(t, j.HandleIntegrity(context.Background(), task))
	require.Equal(t, 25, checker.limit)

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	require.Contains(t, body, `odyssey_ledger_integrity_issues_total{company="1",problem="UNBALANCED"} 2`)
	require.Contains(t, body, `odyssey_ledger_integrity_issues_total{company="2",problem="NO_LINES"} 1`)
	require.Contains(t, body, `odyssey_jobs_total{job="ledger_integrity",status="success"} 1`)
}

func TestHandleIntegrityDefaultsAndFailures(t *testing.T) {
	checker := &stubChecker{err: errors.New("db down")}
	j := NewLedgerJobs(checker, nil, 0, nil, quietLogger())
	err := j.HandleIntegrity(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil))
	require.Error(t, err)
	require.Equal(t, defaultIntegrityLimit, checker.limit)

	err = j.HandleIntegrity(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlersIncludeCleanupWhenConfigured(t *testing.T) {
	require.Len(t, NewLedgerJobs(&stubChecker{}, nil, 0, nil, nil).Handlers(), 1)

	reg := prometheus.NewRegistry()
	cleaner := &stubCleaner{}
	j := NewLedgerJobs(&stubChecker{}, cleaner, 72*time.Hour, jobmetrics.NewMetrics(reg), quietLogger())
	handlers := j.Handlers()
	require.Len(t, handlers, 2)
	require.Equal(t, TaskIdempotencyCleanup, handlers[1].Type)
	require.NoError(t, handlers[1].Handler(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 72*time.Hour, cleaner.retention)

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rr.Body.String(), "odyssey_idempotency_keys_purged_total 4")
	require.Contains(t, rr.Body.String(), `odyssey_job_last_success_timestamp_seconds{job="idempotency_cleanup"}`)
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, quietLogger())
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"failed":0}`, rr.Body.String())
}
