// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to mapErrorToStatus for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/lendingclub/pkg/httpx"
	"github.com/ghuser/lendingclub/services/lending/domain"
)

// WriteSafeError maps err to an HTTP status code with errors.Is, so wrapped
// sentinels match, and writes a JSON error response. Unrecognized errors are
// 500s; in production their message is replaced by the status text.
func WriteSafeError(w http.ResponseWriter, err error, isProduction bool) {
	status := mapErrorToStatus(err)
	httpx.JSONError(w, status, httpx.SafeError(err, status, isProduction))
}

// Specific causes are checked before the generic wrappers they travel in:
// System wraps item-level rejections in ErrCannotUpdate.
func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyUnderContract),
		errors.Is(err, domain.ErrContractOverlap),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict // 409
	case errors.Is(err, domain.ErrNegativeAmount),
		errors.Is(err, domain.ErrInvalidContract),
		errors.Is(err, domain.ErrUnknownCategory),
		errors.Is(err, domain.ErrInvalidMember),
		errors.Is(err, domain.ErrInvalidItem):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, domain.ErrDoesntExist),
		errors.Is(err, domain.ErrCannotDelete):
		return http.StatusNotFound // 404
	case errors.Is(err, domain.ErrCannotUpdate):
		return http.StatusConflict // 409
	default:
		return http.StatusInternalServerError // 500
	}
}
