package documents

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
)

// Cancel reverses a document (STORNO). The original entry and movements stay
// untouched; a mirrored entry and mirrored movements are appended under the
// kind's reversal type, dated on the original document date.
func (s *Service) Cancel(ctx context.Context, companyID, actorID int64, id uuid.UUID) (CancelResult, error) {
	var result CancelResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockLedgerShared(ctx, companyID); err != nil {
			return err
		}
		doc, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if err := transition(doc, StatusCancelled); err != nil {
			return err
		}
		if err := periods.AssertPeriodOpen(ctx, tx, companyID, doc.DocumentDate); err != nil {
			return err
		}
		original, err := journals.FindByDocument(ctx, tx, companyID, doc.Kind.DocumentType(), doc.ID)
		if err != nil {
			return err
		}
		if len(original.Lines) == 0 {
			return journals.ErrLinesEmpty.Detailf(map[string]any{"entryId": original.ID},
				"journal entry %d of document %s has no lines", original.ID, doc.ID)
		}
		reversal, err := journals.CreateJournalEntry(ctx, tx, journals.EntryInput{
			CompanyID:    companyID,
			Date:         original.Date,
			DocumentType: doc.Kind.ReversalType(),
			DocumentID:   doc.ID,
			Source:       journals.SourceSystem,
			Memo:         "STORNO " + postingMemo(doc),
			CreatedBy:    actorID,
			Lines:        journals.MirrorLines(original.Lines),
		})
		if err != nil {
			return err
		}
		mirrored, err := inventory.CreateReverseMovements(ctx, tx, companyID, doc.ID, doc.Kind.ReversalType())
		if err != nil {
			return err
		}
		cancelledAt := s.now().UTC()
		if err := tx.UpdateStatus(ctx, doc.ID, StatusCancelled, &cancelledAt); err != nil {
			return err
		}
		doc.Status = StatusCancelled
		doc.CancelledAt = &cancelledAt
		result = CancelResult{
			Document:          doc,
			Reversal:          ReversalSummary{ID: reversal.ID, LinesCount: len(reversal.Lines)},
			MovementsReversed: len(mirrored),
		}
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	s.afterCommit(ctx, result.Document, actorID, "document.cancel", map[string]any{
		"reversal_entry_id":  result.Reversal.ID,
		"movements_reversed": result.MovementsReversed,
	})
	if s.metrics != nil {
		s.metrics.DocumentCancelled(string(result.Document.Kind))
	}
	s.logger.Info("document cancelled",
		slog.String("document_id", result.Document.ID.String()),
		slog.Int64("company_id", companyID),
		slog.Int64("reversal_entry_id", result.Reversal.ID))
	return result, nil
}
