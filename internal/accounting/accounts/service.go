package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service manages the chart of accounts of a company.
type Service struct {
	repo     Repository
	registry Registry
	audit    shared.AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the account service. audit may be nil.
func NewService(repo Repository, registry Registry, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, audit: audit, logger: logger, now: time.Now}
}

// List returns the company's accounts ordered by code.
func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	items, err := s.repo.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].IsSystem = s.registry.IsProtected(items[i].Code)
	}
	return items, nil
}

// Create inserts a non-system account. Protected codes only enter the chart
// through SeedSystemAccounts.
func (s *Service) Create(ctx context.Context, companyID, actorID int64, in CreateInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.NameDE = strings.TrimSpace(in.NameDE)
	in.NameEN = strings.TrimSpace(in.NameEN)
	if in.Code == "" || in.NameDE == "" || !in.Type.Valid() {
		return Account{}, ErrInvalidAccount.Detailf(map[string]any{"code": in.Code, "type": in.Type},
			"account requires code, German name and a valid type")
	}
	if s.registry.IsProtected(in.Code) {
		return Account{}, ErrProtectedAccount.Detailf(map[string]any{"code": in.Code},
			"code %s is reserved for a system account, seed it instead", in.Code)
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.CodeExists(ctx, companyID, in.Code, 0)
		if err != nil {
			return err
		}
		if exists {
			return duplicate(in.Code)
		}
		created, err = tx.Insert(ctx, companyID, in)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	created.IsSystem = s.registry.IsProtected(created.Code)
	s.record(ctx, companyID, actorID, "account.create", fmt.Sprintf("%d", created.ID), map[string]any{"code": created.Code})
	return created, nil
}

// Update applies a partial update. System accounts keep their code and type
// and cannot be deactivated; their names may change.
func (s *Service) Update(ctx context.Context, companyID, actorID, id int64, patch Patch) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if s.registry.IsProtected(current.Code) {
			if err := guardProtected(current, patch); err != nil {
				return err
			}
		}
		next := current
		if patch.Code != nil {
			next.Code = strings.TrimSpace(*patch.Code)
		}
		if patch.NameDE != nil {
			next.NameDE = strings.TrimSpace(*patch.NameDE)
		}
		if patch.NameEN != nil {
			next.NameEN = strings.TrimSpace(*patch.NameEN)
		}
		if patch.Type != nil {
			next.Type = *patch.Type
		}
		if patch.IsActive != nil {
			next.IsActive = *patch.IsActive
		}
		if next.Code == "" || next.NameDE == "" || !next.Type.Valid() {
			return ErrInvalidAccount.Detailf(map[string]any{"id": id}, "account requires code, German name and a valid type")
		}
		if next.Code != current.Code {
			if s.registry.IsProtected(next.Code) {
				return ErrProtectedAccount.Detailf(map[string]any{"code": next.Code}, "code %s is reserved for a system account", next.Code)
			}
			exists, err := tx.CodeExists(ctx, companyID, next.Code, id)
			if err != nil {
				return err
			}
			if exists {
				return duplicate(next.Code)
			}
		}
		updated, err = tx.Save(ctx, next)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	updated.IsSystem = s.registry.IsProtected(updated.Code)
	s.record(ctx, companyID, actorID, "account.update", fmt.Sprintf("%d", id), map[string]any{"code": updated.Code})
	return updated, nil
}

func guardProtected(current Account, patch Patch) error {
	details := map[string]any{"id": current.ID, "code": current.Code}
	switch {
	case patch.Code != nil && strings.TrimSpace(*patch.Code) != current.Code:
		return ErrProtectedAccount.Detailf(details, "system account %s cannot change its code", current.Code)
	case patch.Type != nil && *patch.Type != current.Type:
		return ErrProtectedAccount.Detailf(details, "system account %s cannot change its type", current.Code)
	case patch.IsActive != nil && !*patch.IsActive:
		return ErrProtectedAccount.Detailf(details, "system account %s cannot be deactivated", current.Code)
	}
	return nil
}

// Delete removes a single account.
func (s *Service) Delete(ctx context.Context, companyID, actorID, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		details := map[string]any{"id": id, "code": current.Code}
		if s.registry.IsProtected(current.Code) {
			return ErrProtectedAccount.Detailf(details, "system account %s cannot be deleted", current.Code)
		}
		used, err := tx.UsedAccountIDs(ctx, []int64{id})
		if err != nil {
			return err
		}
		if used[id] {
			return ErrAccountInUse.Detailf(details, "account %s is referenced by journal lines", current.Code)
		}
		_, err = tx.Delete(ctx, companyID, []int64{id})
		return err
	})
	if err != nil {
		return err
	}
	s.record(ctx, companyID, actorID, "account.delete", fmt.Sprintf("%d", id), nil)
	return nil
}

// CheckUsage partitions ids into deletable, system and protected accounts.
// Ids that do not belong to the company are ignored.
func (s *Service) CheckUsage(ctx context.Context, companyID int64, ids []int64) (UsageReport, error) {
	var report UsageReport
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		report, err = s.usage(ctx, tx, companyID, ids)
		return err
	})
	return report, err
}

// BulkDelete deletes the deletable subset of ids in one transaction.
func (s *Service) BulkDelete(ctx context.Context, companyID, actorID int64, ids []int64) (BulkDeleteResult, error) {
	var result BulkDeleteResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		report, err := s.usage(ctx, tx, companyID, ids)
		if err != nil {
			return err
		}
		result.SystemCount = len(report.System)
		result.ProtectedCount = len(report.Protected)
		if len(report.Deletable) == 0 {
			return nil
		}
		result.Deleted, err = tx.Delete(ctx, companyID, report.Deletable)
		return err
	})
	if err != nil {
		return BulkDeleteResult{}, err
	}
	if result.Deleted > 0 {
		s.record(ctx, companyID, actorID, "account.bulk_delete", fmt.Sprintf("%d", companyID), map[string]any{
			"deleted":   result.Deleted,
			"system":    result.SystemCount,
			"protected": result.ProtectedCount,
		})
	}
	return result, nil
}

func (s *Service) usage(ctx context.Context, tx TxRepository, companyID int64, ids []int64) (UsageReport, error) {
	ids = uniqueIDs(ids)
	report := UsageReport{Deletable: []int64{}, System: []int64{}, Protected: []int64{}}
	if len(ids) == 0 {
		return report, nil
	}
	found, err := tx.FindByIDs(ctx, companyID, ids)
	if err != nil {
		return UsageReport{}, err
	}
	candidates := make([]int64, 0, len(found))
	for _, acc := range found {
		if s.registry.IsProtected(acc.Code) {
			report.System = append(report.System, acc.ID)
			continue
		}
		candidates = append(candidates, acc.ID)
	}
	used := map[int64]bool{}
	if len(candidates) > 0 {
		used, err = tx.UsedAccountIDs(ctx, candidates)
		if err != nil {
			return UsageReport{}, err
		}
	}
	for _, id := range candidates {
		if used[id] {
			report.Protected = append(report.Protected, id)
		} else {
			report.Deletable = append(report.Deletable, id)
		}
	}
	report.Total = len(report.Deletable) + len(report.System) + len(report.Protected)
	sortIDs(report.Deletable)
	sortIDs(report.System)
	sortIDs(report.Protected)
	return report, nil
}

// SeedSystemAccounts inserts the system chart accounts the company lacks.
func (s *Service) SeedSystemAccounts(ctx context.Context, companyID, actorID int64) (SeedResult, error) {
	result := SeedResult{Inserted: []string{}}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.Codes(ctx, companyID)
		if err != nil {
			return err
		}
		for _, entry := range s.registry.Chart() {
			if existing[entry.Code] {
				continue
			}
			if _, err := tx.Insert(ctx, companyID, CreateInput{
				Code:   entry.Code,
				NameDE: entry.NameDE,
				NameEN: entry.NameEN,
				Type:   entry.Type,
			}); err != nil {
				return err
			}
			result.Inserted = append(result.Inserted, entry.Code)
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	if len(result.Inserted) > 0 {
		s.logger.Info("seeded system accounts", slog.Int64("company_id", companyID), slog.Int("count", len(result.Inserted)))
		s.record(ctx, companyID, actorID, "account.seed", fmt.Sprintf("%d", companyID), map[string]any{"codes": result.Inserted})
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, companyID, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "account",
		EntityID:  entityID,
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.Warn("audit account change", slog.String("action", action), slog.Any("error", err))
	}
}

func duplicate(code string) error {
	return ErrDuplicateAccount.Detailf(map[string]any{"code": code}, "account code %s already exists", code)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
