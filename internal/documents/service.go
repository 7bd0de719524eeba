package documents

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// StockInvalidator drops derived stock reports after a committed change.
type StockInvalidator interface {
	Invalidate(ctx context.Context, companyID int64)
}

// Metrics receives ledger counters.
type Metrics interface {
	DocumentPosted(kind string)
	DocumentCancelled(kind string)
	RepostCompleted(deleted, recreated int)
	RepostFailed()
}

// Config tunes the service.
type Config struct {
	// RepostMaxDays bounds the span of a repost range.
	RepostMaxDays int
}

// Service turns sales and purchases into journal entries and stock movements.
type Service struct {
	repo    Repository
	stock   StockInvalidator
	audit   shared.AuditPort
	metrics Metrics
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewService wires the document service. stock, audit and metrics may be nil.
func NewService(repo Repository, stock StockInvalidator, audit shared.AuditPort, metrics Metrics, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RepostMaxDays <= 0 {
		cfg.RepostMaxDays = 366
	}
	return &Service{
		repo:    repo,
		stock:   stock,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get loads a document with its items.
func (s *Service) Get(ctx context.Context, companyID int64, id uuid.UUID) (Document, error) {
	return s.repo.Get(ctx, companyID, id)
}

// Post books a document: header, items, a two-line journal entry and one
// stock movement per item, all in one transaction.
func (s *Service) Post(ctx context.Context, in PostInput) (PostResult, error) {
	in.normalise()
	if err := in.Validate(); err != nil {
		return PostResult{}, err
	}
	doc := in.document(s.newID())
	var result PostResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedgerShared(ctx, doc.CompanyID); err != nil {
			return err
		}
		if err := periods.AssertPeriodOpen(ctx, tx, doc.CompanyID, doc.DocumentDate); err != nil {
			return err
		}
		if err := checkProfileAccounts(ctx, tx, doc.CompanyID, in.Profile); err != nil {
			return err
		}
		if doc.Kind == KindSale {
			if err := inventory.ReserveAvailability(ctx, tx, doc.CompanyID, doc.Requirements()); err != nil {
				return err
			}
		}
		inserted, err := tx.InsertDocument(ctx, doc)
		if err != nil {
			return err
		}
		total := Total(inserted.Items)
		if !total.IsPositive() {
			return ErrNonPositiveTotal.Detailf(map[string]any{"total": total.StringFixed(2)}, "document total %s must be positive", total.StringFixed(2))
		}
		entry, err := journals.CreateJournalEntry(ctx, tx, journals.EntryInput{
			CompanyID:    inserted.CompanyID,
			Date:         inserted.DocumentDate,
			DocumentType: inserted.Kind.DocumentType(),
			DocumentID:   inserted.ID,
			Source:       journals.SourceSystem,
			Memo:         postingMemo(inserted),
			CreatedBy:    in.ActorID,
			Lines:        in.Profile.Lines(total),
		})
		if err != nil {
			return err
		}
		if err := tx.UpdatePosting(ctx, inserted.ID, in.Profile, total); err != nil {
			return err
		}
		inserted.Profile = in.Profile
		inserted.TotalAmount = total
		movements, err := inventory.AppendMovements(ctx, tx, inserted.Movements())
		if err != nil {
			return err
		}
		result = PostResult{Document: inserted, JournalEntry: entry, Movements: movements}
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}
	s.afterCommit(ctx, result.Document, in.ActorID, "document.post", map[string]any{
		"kind":     result.Document.Kind,
		"series":   result.Document.Series,
		"number":   result.Document.Number,
		"total":    result.Document.TotalAmount.StringFixed(2),
		"entry_id": result.JournalEntry.ID,
	})
	if s.metrics != nil {
		s.metrics.DocumentPosted(string(result.Document.Kind))
	}
	s.logger.Info("document posted",
		slog.String("document_id", result.Document.ID.String()),
		slog.String("kind", string(result.Document.Kind)),
		slog.Int64("company_id", result.Document.CompanyID),
		slog.String("total", result.Document.TotalAmount.StringFixed(2)))
	return result, nil
}

// Lock freezes a DRAFT document (Festschreibung). Locked documents cannot be cancelled.
func (s *Service) Lock(ctx context.Context, companyID, actorID int64, id uuid.UUID) (Document, error) {
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if err := transition(current, StatusLocked); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, current.ID, StatusLocked, nil); err != nil {
			return err
		}
		current.Status = StatusLocked
		doc = current
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.afterCommit(ctx, doc, actorID, "document.lock", nil)
	return doc, nil
}

// transition validates a status change against statusTransitions.
func transition(doc Document, target Status) error {
	if statusTransitions.Allows(doc.Status, target) {
		return nil
	}
	details := map[string]any{"documentId": doc.ID.String(), "status": doc.Status}
	switch doc.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled.Detailf(details, "document %s is already cancelled", doc.ID)
	case StatusLocked:
		return ErrDocumentLocked.Detailf(details, "document %s is locked", doc.ID)
	}
	return shared.NewError(shared.KindConflict, "INVALID_STATUS_TRANSITION", "status transition invalid").
		Detailf(details, "document %s cannot move from %s to %s", doc.ID, doc.Status, target)
}

func checkProfileAccounts(ctx context.Context, tx TxRepository, companyID int64, profile PostingProfile) error {
	ids := []int64{profile.DebitAccountID, profile.CreditAccountID}
	active, err := tx.AccountsInCompany(ctx, companyID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		isActive, ok := active[id]
		if !ok {
			return accounts.ErrAccountNotFound.Detailf(map[string]any{"accountId": id},
				"posting profile account %d does not belong to company %d", id, companyID)
		}
		if !isActive {
			return ErrAccountInactive.Detailf(map[string]any{"accountId": id}, "posting profile account %d is inactive", id)
		}
	}
	return nil
}

func postingMemo(doc Document) string {
	return string(doc.Kind) + " " + doc.Series + "-" + doc.Number
}

// afterCommit runs the side effects that must not roll back the ledger.
func (s *Service) afterCommit(ctx context.Context, doc Document, actorID int64, action string, meta map[string]any) {
	if s.stock != nil && action != "document.lock" {
		s.stock.Invalidate(ctx, doc.CompanyID)
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: doc.CompanyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "document",
		EntityID:  doc.ID.String(),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.Warn("audit document", slog.String("action", action), slog.Any("error", err))
	}
}
