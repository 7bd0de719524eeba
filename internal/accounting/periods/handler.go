package periods

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes period close state over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), tenant.CompanyID)
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Period{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": items})
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, true)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, false)
}

func (h *Handler) change(w http.ResponseWriter, r *http.Request, closed bool) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	year, errY := strconv.Atoi(chi.URLParam(r, "year"))
	month, errM := strconv.Atoi(chi.URLParam(r, "month"))
	if errY != nil || errM != nil {
		httpx.RespondError(w, ErrInvalidPeriod)
		return
	}
	ym := YearMonth{Year: year, Month: month}
	var (
		period Period
		err    error
	)
	if closed {
		period, err = h.service.Close(r.Context(), tenant.CompanyID, ym, tenant.ActorID)
	} else {
		period, err = h.service.Reopen(r.Context(), tenant.CompanyID, ym, tenant.ActorID)
	}
	if err != nil {
		h.logger.Warn("change period", slog.Bool("close", closed), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}
