// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints:
// the error envelope, consistent JSON serialization, and helpers for common
// HTTP patterns. Every body carries `ok` so browser clients can branch on a
// single field, as the storefront pages always have.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting; 5xx responses are
//     logged with the request-scoped logger.
//   - `ok()` writes success bodies as-is.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "ok": false,
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "error": "Invalid crate purchase"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Refunded is present only when a failed crate open or store delivery was
// compensated; Required and Current only on insufficient balance.
type ErrorResponse struct {
	OK bool `json:"ok" example:"false"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Error string `json:"error" example:"Invalid crate purchase"`

	Refunded *int64 `json:"refunded,omitempty" example:"500"`
	Required *int64 `json:"required,omitempty" example:"500"`
	Current  *int64 `json:"current,omitempty" example:"120"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Error: msg})
}

// failWith is fail for envelopes that carry extra fields.
func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.OK = false
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Error)
		if resp.Refunded != nil {
			ev = ev.Int64("refunded", *resp.Refunded)
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func int64Ptr(v int64) *int64 { return &v }
