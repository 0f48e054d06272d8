package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/escrow"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeInvalidArgument   = "invalid_argument"
	CodeUnauthenticated   = "unauthenticated"
	CodeUnauthorized      = "unauthorized"
	CodeUnknownVoucher    = "unknown_voucher"
	CodeInvalidState      = "invalid_state"
	CodeInsufficientFunds = "insufficient_funds"
	CodeRateLimited       = "rate_limited"
	CodeUnavailable       = "unavailable"
	CodeInternal          = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusOf maps an engine or authentication error to an HTTP status and code.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, escrow.ErrInvalidArgument):
		return http.StatusBadRequest, CodeInvalidArgument
	case errors.Is(err, escrow.ErrUnauthorized):
		return http.StatusForbidden, CodeUnauthorized
	case errors.Is(err, escrow.ErrUnknownVoucher):
		return http.StatusNotFound, CodeUnknownVoucher
	case errors.Is(err, escrow.ErrInvalidState):
		return http.StatusConflict, CodeInvalidState
	case errors.Is(err, escrow.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, CodeInsufficientFunds
	case errors.Is(err, escrow.ErrNotStarted):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, code := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("api: request failed", "error", err)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}
