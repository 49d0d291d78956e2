package httpx

import (
	"errors"
	"net/http"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// RespondError maps ledger domain errors to HTTP responses using RFC7807.
// Validation failures are caller-fixable, state conflicts are 409s, and
// anything unrecognised is reported as an opaque internal error so storage
// details never leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrCouponNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidTransferRoute):
		Problem(w, http.StatusBadRequest, "Invalid Transfer Route", err.Error())
	case errors.Is(err, shared.ErrInsufficientBalance):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Balance", err.Error())
	case errors.Is(err, shared.ErrAlreadyProcessed), errors.Is(err, shared.ErrCouponUsed),
		errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrDuplicateCode):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrDeletionRefused):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
