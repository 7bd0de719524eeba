package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind shared.Kind) int {
	switch kind {
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindIntegrity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unclassified errors become 500 without leaking their message.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			details[fieldPath(fe)] = fe.Tag()
		}
		WriteProblem(w, ProblemDetail{
			Title:   "Validation Failed",
			Status:  http.StatusBadRequest,
			Detail:  "request failed validation",
			Code:    shared.ErrInvalidInput.Code,
			Details: details,
		})
		return
	}
	if e, ok := shared.AsError(err); ok {
		status := StatusFor(e.Kind)
		WriteProblem(w, ProblemDetail{
			Title:   http.StatusText(status),
			Status:  status,
			Detail:  e.Message,
			Code:    e.Code,
			Details: e.Details,
		})
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}
