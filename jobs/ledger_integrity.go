package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const defaultIntegrityLimit = 500

// IntegrityChecker lists journal entries that are empty or unbalanced.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, limit int) ([]journals.IntegrityIssue, error)
}

// KeyCleaner purges idempotency keys older than a retention.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LedgerJobs holds the handlers of the ledger tasks.
type LedgerJobs struct {
	checker   IntegrityChecker
	keys      KeyCleaner
	retention time.Duration
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewLedgerJobs wires the ledger task handlers. keys may be nil.
func NewLedgerJobs(checker IntegrityChecker, keys KeyCleaner, retention time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) *LedgerJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerJobs{checker: checker, keys: keys, retention: retention, metrics: metrics, logger: logger}
}

// Handlers lists the task handlers for the worker mux.
func (j *LedgerJobs) Handlers() []TaskHandler {
	handlers := []TaskHandler{{Type: TaskLedgerIntegrity, Handler: j.HandleIntegrity}}
	if j.keys != nil {
		handlers = append(handlers, TaskHandler{Type: TaskIdempotencyCleanup, Handler: j.HandleCleanup})
	}
	return handlers
}

// HandleIntegrity runs one integrity scan. Findings are logged and counted;
// the task only fails when the scan itself fails.
func (j *LedgerJobs) HandleIntegrity(ctx context.Context, t *asynq.Task) error {
	payload := LedgerIntegrityPayload{Limit: defaultIntegrityLimit}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode integrity payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.metrics.Track("ledger_integrity")
	issues, err := j.checker.CheckIntegrity(ctx, payload.Limit)
	if err != nil {
		return tracker.End(err)
	}
	counts := make(map[string]map[int64]int)
	for _, issue := range issues {
		if counts[issue.Problem] == nil {
			counts[issue.Problem] = make(map[int64]int)
		}
		counts[issue.Problem][issue.CompanyID]++
		j.logger.Error("ledger integrity violation",
			slog.Int64("entry_id", issue.EntryID),
			slog.Int64("company_id", issue.CompanyID),
			slog.String("problem", issue.Problem),
			slog.String("debit", issue.Debit.StringFixed(2)),
			slog.String("credit", issue.Credit.StringFixed(2)))
	}
	for problem, byCompany := range counts {
		for companyID, n := range byCompany {
			j.metrics.AddIntegrityIssues(problem, companyID, n)
		}
	}
	j.logger.Info("ledger integrity check executed", slog.String("job", "ledger_integrity"), slog.Int("issues", len(issues)))
	return tracker.End(nil)
}

// HandleCleanup drops idempotency keys past the retention.
func (j *LedgerJobs) HandleCleanup(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("idempotency_cleanup")
	removed, err := j.keys.Cleanup(ctx, j.retention)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddPurgedKeys(removed)
	j.logger.Info("idempotency keys purged", slog.Int64("removed", removed), slog.Duration("retention", j.retention))
	return tracker.End(nil)
}
