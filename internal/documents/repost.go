package documents

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepostInput selects the documents to rebuild.
type RepostInput struct {
	CompanyID int64
	ActorID   int64
	From      time.Time
	To        time.Time
}

// Repost deletes every SYSTEM journal entry dated in the range and rebuilds
// it from the documents' memoized posting profiles. MANUAL entries and stock
// movements are left alone. Any document without a profile aborts the whole range.
func (s *Service) Repost(ctx context.Context, in RepostInput) (RepostResult, error) {
	from, to := shared.DateOnly(in.From), shared.DateOnly(in.To)
	if err := s.validateRange(from, to); err != nil {
		if s.metrics != nil {
			s.metrics.RepostFailed()
		}
		return RepostResult{}, err
	}
	result := RepostResult{Range: RepostRange{From: from, To: to}}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedgerExclusive(ctx, in.CompanyID); err != nil {
			return err
		}
		if err := periods.AssertRangeOpen(ctx, tx, in.CompanyID, from, to); err != nil {
			return err
		}
		docs, err := tx.ListInRange(ctx, in.CompanyID, from, to)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if !doc.Profile.Complete() {
				return ErrMissingPostingProfile.Detailf(map[string]any{
					"documentId": doc.ID.String(),
					"kind":       doc.Kind,
					"series":     doc.Series,
					"number":     doc.Number,
				}, "document %s %s-%s has no posting profile", doc.Kind, doc.Series, doc.Number)
			}
		}
		deleted, err := tx.DeleteSystemEntries(ctx, in.CompanyID, from, to)
		if err != nil {
			return err
		}
		result.DeletedEntries = deleted
		for _, doc := range docs {
			recreated, err := s.rebuild(ctx, tx, doc, in.ActorID)
			if err != nil {
				return err
			}
			if recreated == 0 {
				continue
			}
			result.RecreatedEntries += recreated
			result.DocumentsProcessed.count(doc)
		}
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RepostFailed()
		}
		s.logger.Error("repost failed",
			slog.Int64("company_id", in.CompanyID),
			slog.String("from", from.Format(shared.DateLayout)),
			slog.String("to", to.Format(shared.DateLayout)),
			slog.Any("error", err))
		return RepostResult{}, err
	}
	if s.metrics != nil {
		s.metrics.RepostCompleted(result.DeletedEntries, result.RecreatedEntries)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			CompanyID: in.CompanyID,
			ActorID:   in.ActorID,
			Action:    "ledger.repost",
			Entity:    "ledger",
			EntityID:  from.Format(shared.DateLayout) + ".." + to.Format(shared.DateLayout),
			Meta: map[string]any{
				"deleted":   result.DeletedEntries,
				"recreated": result.RecreatedEntries,
			},
			At: s.now(),
		}); err != nil {
			s.logger.Warn("audit repost", slog.Any("error", err))
		}
	}
	s.logger.Info("ledger reposted",
		slog.Int64("company_id", in.CompanyID),
		slog.Int("deleted", result.DeletedEntries),
		slog.Int("recreated", result.RecreatedEntries))
	return result, nil
}

// rebuild recreates the entries of one document and returns how many were written.
func (s *Service) rebuild(ctx context.Context, tx TxRepository, doc Document, actorID int64) (int, error) {
	total := Total(doc.Items)
	if !total.IsPositive() {
		return 0, nil
	}
	original, err := journals.CreateJournalEntry(ctx, tx, journals.EntryInput{
		CompanyID:    doc.CompanyID,
		Date:         doc.DocumentDate,
		DocumentType: doc.Kind.DocumentType(),
		DocumentID:   doc.ID,
		Source:       journals.SourceSystem,
		Memo:         postingMemo(doc),
		CreatedBy:    actorID,
		Lines:        doc.Profile.Lines(total),
	})
	if err != nil {
		return 0, err
	}
	if doc.Status != StatusCancelled {
		return 1, nil
	}
	if _, err := journals.CreateJournalEntry(ctx, tx, journals.EntryInput{
		CompanyID:    doc.CompanyID,
		Date:         doc.DocumentDate,
		DocumentType: doc.Kind.ReversalType(),
		DocumentID:   doc.ID,
		Source:       journals.SourceSystem,
		Memo:         "STORNO " + postingMemo(doc),
		CreatedBy:    actorID,
		Lines:        journals.MirrorLines(original.Lines),
	}); err != nil {
		return 0, err
	}
	return 2, nil
}

func (s *Service) validateRange(from, to time.Time) error {
	details := map[string]any{
		"from":    from.Format(shared.DateLayout),
		"to":      to.Format(shared.DateLayout),
		"maxDays": s.cfg.RepostMaxDays,
	}
	if from.IsZero() || to.IsZero() {
		return ErrInvalidRange.Detailf(details, "repost range requires from and to")
	}
	if to.Before(from) {
		return ErrInvalidRange.Detailf(details, "repost range ends before it starts")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > s.cfg.RepostMaxDays {
		return ErrInvalidRange.Detailf(details, "repost range spans %d days, at most %d allowed", days, s.cfg.RepostMaxDays)
	}
	return nil
}

func (c *ProcessedCounts) count(doc Document) {
	cancelled := doc.Status == StatusCancelled
	switch doc.Kind {
	case KindSale:
		c.Sales++
		if cancelled {
			c.CancelledSales++
		}
	case KindPurchase:
		c.Purchases++
		if cancelled {
			c.CancelledPurchases++
		}
	}
}
