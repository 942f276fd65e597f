// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements the human-readable `error` text.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., insufficient_balance, refund_failed) are reserved
//     for business outcomes that cannot be conveyed by status alone.
//
// Example response:
//
//	{
//	  "ok": false,
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "error": "Crate already opened"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTimeout          = "timeout"

	ErrCodeIdempotencyConflict = "idempotency_conflict"

	// Domain-specific:
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeCrateMisconfigured  = "crate_misconfigured"
	ErrCodeOpenFailed          = "open_failed"
	ErrCodeRefundFailed        = "refund_failed"
	ErrCodePurchaseFailed      = "purchase_failed"
	ErrCodeListFailed          = "list_failed"
)
