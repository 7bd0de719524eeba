// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ProblemDetail represents RFC7807 problem details extended with a machine
// readable code and structured details.
type ProblemDetail struct {
	Type    string         `json:"type,omitempty"`
	Title   string         `json:"title"`
	Status  int            `json:"status"`
	Detail  string         `json:"detail,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	WriteProblem(w, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// WriteProblem sends a fully populated problem document.
func WriteProblem(w http.ResponseWriter, p ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// DecodeJSON decodes JSON request body into the target struct. Malformed or
// empty bodies are reported as shared.ErrInvalidInput.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.ErrInvalidInput.Detailf(nil, "request body required")
		}
		return shared.ErrInvalidInput.Detailf(nil, "malformed request body: %v", err)
	}
	return nil
}

// RequireTenant returns the tenant scope attached by the tenant middleware or
// writes 401 when the request carries none.
func RequireTenant(w http.ResponseWriter, r *http.Request) (shared.Tenant, bool) {
	tenant, ok := shared.TenantFromContext(r.Context())
	if !ok || tenant.CompanyID == 0 {
		Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return shared.Tenant{}, false
	}
	return tenant, true
}
