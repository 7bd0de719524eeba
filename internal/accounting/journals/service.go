package journals

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

// CreateJournalEntry validates and writes an entry inside the caller's unit
// of work. Nothing is written when validation fails.
func CreateJournalEntry(ctx context.Context, tx TxRepository, in EntryInput) (Entry, error) {
	if in.Source == "" {
		in.Source = SourceSystem
	}
	in.Date = shared.DateOnly(in.Date)
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	ids := accountIDs(in.Lines)
	known, err := tx.AccountsInCompany(ctx, in.CompanyID, ids)
	if err != nil {
		return Entry{}, err
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return Entry{}, accounts.ErrAccountNotFound.Detailf(map[string]any{"accountId": id},
				"account %d does not belong to company %d", id, in.CompanyID)
		}
	}
	entry, err := tx.InsertJournalEntry(ctx, in)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines, err = tx.InsertJournalLines(ctx, entry.ID, in.Lines)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// MirrorLines swaps debit and credit of every line, keeping account and order.
func MirrorLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
		})
	}
	return out
}

// FindByDocument loads the entry of a document type together with its lines.
func FindByDocument(ctx context.Context, tx TxRepository, companyID int64, documentType string, documentID uuid.UUID) (Entry, error) {
	entry, err := tx.FindByDocument(ctx, companyID, documentType, documentID)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func accountIDs(lines []LineInput) []int64 {
	seen := make(map[int64]bool, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if seen[line.AccountID] {
			continue
		}
		seen[line.AccountID] = true
		ids = append(ids, line.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Service serves manual postings and journal reads.
type Service struct {
	repo   Repository
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the journal service. audit may be nil.
func NewService(repo Repository, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostManual books a hand entered entry in its own transaction. Reposting never touches it.
func (s *Service) PostManual(ctx context.Context, in EntryInput) (Entry, error) {
	in.Source = SourceManual
	in.DocumentType = DocumentTypeManual
	if in.DocumentID == uuid.Nil {
		in.DocumentID = uuid.New()
	}
	in.Date = shared.DateOnly(in.Date)
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx PostingTx) error {
		if err := tx.LockLedgerShared(ctx, in.CompanyID); err != nil {
			return err
		}
		if err := periods.AssertPeriodOpen(ctx, tx, in.CompanyID, in.Date); err != nil {
			return err
		}
		var err error
		entry, err = CreateJournalEntry(ctx, tx, in)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.logger.Info("manual journal posted", slog.Int64("company_id", in.CompanyID), slog.Int64("entry_id", entry.ID))
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: in.CompanyID,
			ActorID:   in.CreatedBy,
			Action:    "journal.manual",
			Entity:    "journal_entry",
			EntityID:  fmt.Sprintf("%d", entry.ID),
			Meta:      map[string]any{"lines": len(entry.Lines), "memo": in.Memo},
			At:        s.now(),
		}); err != nil {
			s.logger.Warn("audit manual journal", slog.Any("error", err))
		}
	}
	return entry, nil
}

// List returns entries matching filter ordered by date.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.repo.List(ctx, companyID, filter)
}

// TrialBalance aggregates account turnover dated in [from, to].
func (s *Service) TrialBalance(ctx context.Context, companyID int64, from, to time.Time) (TrialBalance, error) {
	from, to = shared.DateOnly(from), shared.DateOnly(to)
	if to.Before(from) {
		return TrialBalance{}, shared.ErrInvalidInput.Detailf(map[string]any{
			"from": from.Format(shared.DateLayout),
			"to":   to.Format(shared.DateLayout),
		}, "trial balance range ends before it starts")
	}
	totals, err := s.repo.AccountTotals(ctx, companyID, from, to)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := BuildTrialBalance(totals)
	tb.From, tb.To = from, to
	return tb, nil
}

// CheckIntegrity scans stored entries for missing lines or imbalance.
func (s *Service) CheckIntegrity(ctx context.Context, limit int) ([]IntegrityIssue, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.repo.IntegrityIssues(ctx, limit)
}
