package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/tabletop-bank/internal/model"
	"github.com/mcoot/tabletop-bank/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidCode     = "INVALID_CODE"
	CodeUnknownAction   = "UNKNOWN_ACTION"
	CodePlayerNotFound  = "PLAYER_NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	CodeInternalError   = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Barcode decoding
	case errors.Is(err, model.ErrUnknownAction):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownAction, err.Error()}}
	case errors.Is(err, model.ErrInvalidFormat):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidCode, err.Error()}}

	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}

	// Admin guard
	case errors.Is(err, auth.ErrInvalidPIN):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid admin PIN"}}
	case errors.Is(err, auth.ErrLockedOut):
		return &httpError{http.StatusTooManyRequests, APIError{CodeTooManyAttempts, err.Error()}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Admin PIN required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
