package journals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

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
	q := r.URL.Query()
	filter := ListFilter{DocumentType: q.Get("documentType"), Source: Source(q.Get("source"))}
	var err error
	if filter.From, err = optionalDate(q.Get("from")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = optionalDate(q.Get("to")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil {
			httpx.RespondError(w, shared.ErrInvalidInput.Detailf(map[string]any{"limit": raw}, "invalid limit"))
			return
		}
	}
	entries, err := h.service.List(r.Context(), tenant.CompanyID, filter)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	var req manualEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.PostManual(r.Context(), EntryInput{
		CompanyID: tenant.CompanyID,
		Date:      date,
		Memo:      req.Memo,
		CreatedBy: tenant.ActorID,
		Lines:     req.lines(),
	})
	if err != nil {
		h.logger.Warn("post manual journal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := shared.ParseDate(q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := shared.ParseDate(q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), tenant.CompanyID, from, to)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func optionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := shared.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
