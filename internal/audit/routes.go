package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	exportLimit  = 10
	exportWindow = time.Minute
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.Timeline)
	r.With(httprate.Limit(exportLimit, exportWindow, httprate.WithKeyFuncs(exportKey))).
		Get("/export.csv", h.ExportCSV)
}

// exportKey limits exports per user, falling back to the client address.
func exportKey(r *http.Request) (string, error) {
	if tenant, ok := shared.TenantFromContext(r.Context()); ok && tenant.ActorID > 0 {
		return "user:" + strconv.FormatInt(tenant.ActorID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
