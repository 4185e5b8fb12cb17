package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy handlers map onto HTTP statuses.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUpstream     = errors.New("upstream failure")
	ErrIntegrity    = errors.New("integrity failure")
)

// ServiceError carries a message and the HTTP status it should surface as.
// Operations return it instead of letting exceptions reach the HTTP
// boundary.
type ServiceError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewServiceError creates a ServiceError.
func NewServiceError(status int, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Message: fmt.Sprintf(format, args...), StatusCode: status}
}

// StatusFor maps a sentinel error to its HTTP status; unknown errors map to
// 500.
func StatusFor(err error) int {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrBadRequest):
		return 400
	case errors.Is(err, ErrUpstream):
		return 502
	}
	return 500
}
