package handlers

import (
	"net/http"

	"github.com/tbourn/go-advisor-backend/internal/services"
)

// Error codes. Clients branch on these, never on messages.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeConflict           = "conflict"
	ErrCodeRateLimited        = "too_many_requests"
	ErrCodeInternal           = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)

// statusOf maps a service error kind to an HTTP status and error code.
func statusOf(k services.Kind) (int, string) {
	switch k {
	case services.KindBadRequest:
		return http.StatusBadRequest, ErrCodeBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden, ErrCodeForbidden
	case services.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case services.KindConflict:
		return http.StatusConflict, ErrCodeConflict
	case services.KindServiceUnavailable:
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
