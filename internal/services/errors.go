// Package services holds the storefront business logic: crate opening with
// pity guarantees and compensating refunds, store purchases, credit top-ups
// and catalog reads. This file centralizes the service-level error values so
// that handlers can map them to HTTP results consistently.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed identifiers or request values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPurchaseNotFound covers a purchase that does not exist, is not owned
	// by the caller, is not completed, or is not a crate.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrAlreadyOpened is returned when the purchase already has an opening.
	ErrAlreadyOpened = errors.New("crate already opened")

	// ErrAttemptReused is returned when an open attempt id already belongs to
	// the opening of a different purchase.
	ErrAttemptReused = errors.New("attempt id already used for another purchase")

	// ErrCrateMisconfigured means the crate has no eligible contents to roll.
	ErrCrateMisconfigured = errors.New("crate has no eligible contents")

	// ErrInsufficientBalance is returned by purchases the balance cannot cover.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPersistence wraps transaction and commit failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrRefundFailed means the compensating refund itself did not go through.
	ErrRefundFailed = errors.New("refund failed")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrItemNotFound is returned for unknown or inactive store items.
	ErrItemNotFound = errors.New("item not found")

	// ErrPackageNotFound is returned for unknown credit packages.
	ErrPackageNotFound = errors.New("credit package not found")
)

// InsufficientBalanceError carries the amounts behind ErrInsufficientBalance.
type InsufficientBalanceError struct {
	Required int64
	Current  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %d, current %d", e.Required, e.Current)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OpenFailure reports a crate open that failed after the purchase was
// validated, together with the outcome of the compensating refund.
type OpenFailure struct {
	PurchaseID int64
	CrateName  string
	Cause      error // ErrPersistence, ErrTimeout or ErrCrateMisconfigured (possibly wrapped)
	Refunded   bool
	Amount     int64 // credits returned when Refunded
	RefundErr  error
}

func (f *OpenFailure) Error() string {
	if f.Refunded {
		return fmt.Sprintf("open purchase %d: %v (refunded %d)", f.PurchaseID, f.Cause, f.Amount)
	}
	return fmt.Sprintf("open purchase %d: %v (refund failed: %v)", f.PurchaseID, f.Cause, f.RefundErr)
}

// Unwrap exposes the cause and, when compensation failed, ErrRefundFailed.
func (f *OpenFailure) Unwrap() []error {
	if f.Refunded {
		return []error{f.Cause}
	}
	return []error{f.Cause, ErrRefundFailed}
}
