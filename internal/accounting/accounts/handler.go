package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.List(r.Context(), tenant.CompanyID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Create(r.Context(), tenant.CompanyID, tenant.ActorID, CreateInput{
		Code:   req.Code,
		NameDE: req.NameDE,
		NameEN: req.NameEN,
		Type:   AccountType(req.Type),
	})
	if err != nil {
		h.logger.Warn("create account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Update(r.Context(), tenant.CompanyID, tenant.ActorID, id, req.toPatch())
	if err != nil {
		h.logger.Warn("update account", slog.Int64("account_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), tenant.CompanyID, tenant.ActorID, id); err != nil {
		h.logger.Warn("delete account", slog.Int64("account_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	switch req.Action {
	case "check-usage":
		report, err := h.service.CheckUsage(r.Context(), tenant.CompanyID, req.IDs)
		if err != nil {
			h.logger.Error("check account usage", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, report)
	case "delete":
		result, err := h.service.BulkDelete(r.Context(), tenant.CompanyID, tenant.ActorID, req.IDs)
		if err != nil {
			h.logger.Error("bulk delete accounts", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, result)
	default:
		httpx.RespondError(w, shared.ErrInvalidInput.Detailf(map[string]any{"action": req.Action}, "unknown bulk action %q", req.Action))
	}
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	result, err := h.service.SeedSystemAccounts(r.Context(), tenant.CompanyID, tenant.ActorID)
	if err != nil {
		h.logger.Error("seed system accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return err
	}
	return h.validator.Struct(target)
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, ErrAccountNotFound)
		return 0, false
	}
	return id, true
}
