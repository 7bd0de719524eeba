package shared

import "context"

// Tenant is the authorised (company, tenant) pair supplied by the upstream
// authentication gateway. ActorID is optional.
type Tenant struct {
	TenantID  int64
	CompanyID int64
	ActorID   int64
}

type tenantContextKey struct{}

// ContextWithTenant stores the tenant scope in context.
func ContextWithTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext extracts the tenant scope from context.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	tenant, ok := ctx.Value(tenantContextKey{}).(Tenant)
	return tenant, ok
}
