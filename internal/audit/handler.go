package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler serves the audit trail of the caller's company.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.filters(w, r)
	if !ok {
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filters, ok := h.filters(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	body, err := WriteCSV(rows)
	if err != nil {
		h.logger.Error("encode audit csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) filters(w http.ResponseWriter, r *http.Request) (TimelineFilters, bool) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return TimelineFilters{}, false
	}
	q := r.URL.Query()
	filters := TimelineFilters{
		CompanyID: tenant.CompanyID,
		Entity:    strings.TrimSpace(q.Get("entity")),
		EntityID:  strings.TrimSpace(q.Get("entityId")),
		Action:    strings.TrimSpace(q.Get("action")),
	}
	var err error
	for name, target := range map[string]*int{"page": &filters.Page, "pageSize": &filters.PageSize} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		if *target, err = strconv.Atoi(raw); err != nil || *target <= 0 {
			httpx.RespondError(w, ErrInvalidFilter.Detailf(map[string]any{name: raw}, "%s must be a positive integer", name))
			return TimelineFilters{}, false
		}
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if filters.From, err = shared.ParseDate(raw); err != nil {
			httpx.RespondError(w, err)
			return TimelineFilters{}, false
		}
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		if filters.To, err = shared.ParseDate(raw); err != nil {
			httpx.RespondError(w, err)
			return TimelineFilters{}, false
		}
	}
	return filters, true
}
