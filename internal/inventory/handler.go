package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes stock reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balances", h.handleBalances)
	r.Get("/card", h.handleStockCard)
}

func (h *Handler) handleBalances(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	var (
		rows []BalanceRow
		err  error
	)
	if warehouse := r.URL.Query().Get("warehouse"); warehouse != "" {
		rows, err = h.service.WarehouseReport(r.Context(), tenant.CompanyID, warehouse)
	} else {
		rows, err = h.service.CompanyReport(r.Context(), tenant.CompanyID)
	}
	if err != nil {
		h.logger.Error("stock balances", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if rows == nil {
		rows = []BalanceRow{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": rows})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.RequireTenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	card, err := h.service.StockCard(r.Context(), tenant.CompanyID, q.Get("warehouse"), q.Get("item"))
	if err != nil {
		h.logger.Error("stock card", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": card})
}
