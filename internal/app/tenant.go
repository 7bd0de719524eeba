package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Tenant headers set by the authenticating gateway in front of the API.
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderCompanyID = "X-Company-ID"
	HeaderUserID    = "X-User-ID"
)

// CompanyResolver returns the tenant owning a company.
type CompanyResolver interface {
	CompanyTenant(ctx context.Context, companyID int64) (int64, error)
}

// CompanyDirectory resolves companies from Postgres.
type CompanyDirectory struct {
	pool *pgxpool.Pool
}

// NewCompanyDirectory constructs the directory.
func NewCompanyDirectory(pool *pgxpool.Pool) *CompanyDirectory {
	return &CompanyDirectory{pool: pool}
}

// CompanyTenant returns shared.ErrCompanyNotFound for unknown companies.
func (d *CompanyDirectory) CompanyTenant(ctx context.Context, companyID int64) (int64, error) {
	var tenantID int64
	err := d.pool.QueryRow(ctx, `SELECT tenant_id FROM companies WHERE id=$1`, companyID).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrCompanyNotFound
	}
	return tenantID, err
}

// TenantMiddleware attaches the (tenant, company) scope from the gateway
// headers. A company that does not belong to the tenant is reported as not
// found so other tenants' companies cannot be probed.
func TenantMiddleware(resolver CompanyResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, errT := headerID(r, HeaderTenantID)
			companyID, errC := headerID(r, HeaderCompanyID)
			if errT != nil || errC != nil || tenantID == 0 || companyID == 0 {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant and company headers required")
				return
			}
			actorID, err := headerID(r, HeaderUserID)
			if err != nil {
				httpx.RespondError(w, shared.ErrInvalidInput.Detailf(map[string]any{"header": HeaderUserID}, "invalid user id"))
				return
			}
			owner, err := resolver.CompanyTenant(r.Context(), companyID)
			if err == nil && owner != tenantID {
				err = shared.ErrCompanyNotFound
			}
			if err != nil {
				if !errors.Is(err, shared.ErrCompanyNotFound) {
					logger.Error("resolve company", slog.Int64("company_id", companyID), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithTenant(r.Context(), shared.Tenant{TenantID: tenantID, CompanyID: companyID, ActorID: actorID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
