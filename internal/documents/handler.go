package documents

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// IdempotencyHeader carries the client's retry key on document posting.
const IdempotencyHeader = "Idempotency-Key"

// KeyStore records processed idempotency keys.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

type Handler struct {
	service   *Service
	keys      KeyStore
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler builds the document handler. keys may be nil to disable idempotency keys.
func NewHandler(logger *slog.Logger, service *Service, keys KeyStore) *Handler {
	return &Handler{logger: logger, service: service, keys: keys, validator: httpx.NewValidator()}
}

func (h *Handler) PostSale(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, KindSale)
}

func (h *Handler) PostPurchase(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, KindPurchase)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, kind Kind) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(req.DocumentDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, err := h.claimKey(r, tenant, kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Post(r.Context(), PostInput{
		Kind:             kind,
		CompanyID:        tenant.CompanyID,
		ActorID:          tenant.ActorID,
		Series:           req.Series,
		Number:           req.Number,
		DocumentDate:     date,
		CounterpartyName: req.CounterpartyName,
		WarehouseName:    req.WarehouseName,
		OperationType:    req.OperationType,
		CurrencyCode:     req.CurrencyCode,
		Profile:          req.Journal,
		Items:            req.items(),
	})
	if err != nil {
		h.releaseKey(r.Context(), key, keyModule(kind))
		h.logger.Warn("post document", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

// claimKey reserves the request's idempotency key. Requests without the
// header are not deduplicated.
func (h *Handler) claimKey(r *http.Request, tenant shared.Tenant, kind Kind) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if raw == "" || h.keys == nil {
		return "", nil
	}
	key := shared.IdempotencyKey(tenant.CompanyID, raw)
	if err := h.keys.CheckAndInsert(r.Context(), key, keyModule(kind)); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return "", shared.ErrIdempotencyConflict.Detailf(map[string]any{"key": raw}, "request %s was already processed", raw)
		}
		return "", err
	}
	return key, nil
}

// keyModule scopes idempotency keys per document kind.
func keyModule(kind Kind) string {
	return "documents." + strings.ToLower(string(kind))
}

func (h *Handler) releaseKey(ctx context.Context, key, module string) {
	if key == "" {
		return
	}
	if err := h.keys.Delete(ctx, key, module); err != nil {
		h.logger.Warn("release idempotency key", slog.String("key", key), slog.String("module", module), slog.Any("error", err))
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	id, err := documentID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Get(r.Context(), tenant.CompanyID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	id, err := documentID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Cancel(r.Context(), tenant.CompanyID, tenant.ActorID, id)
	if err != nil {
		h.logger.Warn("cancel document", slog.String("document_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	id, err := documentID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Lock(r.Context(), tenant.CompanyID, tenant.ActorID, id)
	if err != nil {
		h.logger.Warn("lock document", slog.String("document_id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Repost(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	var req repostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := shared.ParseDate(req.From)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := shared.ParseDate(req.To)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Repost(r.Context(), RepostInput{
		CompanyID: tenant.CompanyID,
		ActorID:   tenant.ActorID,
		From:      from,
		To:        to,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func documentID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.ErrInvalidInput.Detailf(map[string]any{"id": raw}, "invalid document id")
	}
	return id, nil
}
