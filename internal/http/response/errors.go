package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/ledger"
	"github.com/travelika/forest-bookings/pkg/logger"
)

// ErrorResponse is the structured JSON error body every endpoint returns.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeEmailExists      = "EMAIL_EXISTS"
	CodeAlreadyPaid      = "ALREADY_PAID"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// WriteJSON writes the value as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// FromError maps a service error onto the right status and code. Anything
// unrecognized becomes a 500 with a generic message.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrAuthRequired):
		WriteError(w, http.StatusUnauthorized, "sign in required", CodeUnauthorized)
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid email or password", CodeUnauthorized)
	case errors.Is(err, domain.ErrDuplicateAccount):
		WriteError(w, http.StatusConflict, "account already exists", CodeEmailExists)
	case errors.Is(err, domain.ErrAlreadyPaid):
		WriteError(w, http.StatusConflict, "booking already paid", CodeAlreadyPaid)
	case errors.Is(err, domain.ErrBookingNotFound), errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "booking not found", CodeNotFound)
	case errors.Is(err, ledger.ErrStoreUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "store unavailable", CodeStoreUnavailable)
	default:
		logger.Error("unhandled service error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error", CodeInternalError)
	}
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}
