package models

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey is returned when an insert reuses an idempotency key.
// Callers surface it distinctly from validation failures so a client retry
// can be treated as a benign re-confirmation rather than a new error.
var ErrDuplicateKey = errors.New("idempotency key already used")

// ErrNotFound is returned when no row owns the requested key.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a submission before anything is persisted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidMenuItemError means a dinner selection referenced a menu item that
// does not exist for the form. This is fatal for the sub-order: silently
// zero-pricing the item would hide menu drift or a tampered payload.
type InvalidMenuItemError struct {
	ItemID int64
}

func (e *InvalidMenuItemError) Error() string {
	return fmt.Sprintf("menu item %d not found", e.ItemID)
}

// ProcessorError means checkout-session creation failed at the payment
// processor. Order rows stay pending; session creation may be retried on the
// same key without re-inserting them.
type ProcessorError struct {
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment processor: %s: %v", e.Message, e.Err)
	}
	return "payment processor: " + e.Message
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}
