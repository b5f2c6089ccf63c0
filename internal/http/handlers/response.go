// Package handlers implements the HTTP endpoints. Handlers are transport-thin:
// they bind and validate input, call one service method and write either the
// success envelope or the error envelope.
//
// Success:
//
//	HTTP/1.1 200 OK
//	{ "success": true, "message": "Chat created successfully", "data": {...}, "meta": {...} }
//
// Failure:
//
//	HTTP/1.1 404 Not Found
//	{ "request_id": "123e4567-e89b-12d3-a456-426614174000", "code": "not_found", "message": "room not found" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-advisor-backend/internal/http/middleware"
	"github.com/tbourn/go-advisor-backend/internal/query"
	"github.com/tbourn/go-advisor-backend/internal/services"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// Envelope is the success body. Meta is set on list endpoints only.
type Envelope struct {
	Success bool        `json:"success" example:"true"`
	Message string      `json:"message" example:"Profile data retrieved successfully"`
	Data    any         `json:"data,omitempty"`
	Meta    *query.Meta `json:"meta,omitempty"`
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error to its status and code. Internal errors are
// attached to the Gin context for the access log and hidden from the client.
func failErr(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, code := statusOf(kind)
	msg := err.Error()
	switch kind {
	case services.KindInternal:
		_ = c.Error(err)
		msg = "internal server error"
	case services.KindServiceUnavailable:
		_ = c.Error(err)
		msg = services.ErrCompletionUnavailable.Error()
	}
	fail(c, status, code, msg)
}

// ok writes a JSON body as is.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// respond writes the success envelope.
func respond(c *gin.Context, status int, msg string, data any) {
	ok(c, status, Envelope{Success: true, Message: msg, Data: data})
}

// respondPage writes the success envelope with pagination.
func respondPage(c *gin.Context, msg string, data any, meta query.Meta) {
	ok(c, http.StatusOK, Envelope{Success: true, Message: msg, Data: data, Meta: &meta})
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
