package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Request errors (surfaced to the caller)
	ErrUnauthenticated         = errors.New("unauthenticated")
	ErrInvalidInput            = errors.New("invalid input")
	ErrNotFound                = errors.New("not found")
	ErrSpreadNotFound          = fmt.Errorf("spread %w", ErrNotFound)
	ErrAccountNotFound         = fmt.Errorf("account %w", ErrNotFound)
	ErrReadingNotFound         = fmt.Errorf("reading %w", ErrNotFound)
	ErrSubscriptionNotFound    = fmt.Errorf("subscription %w", ErrNotFound)
	ErrInsufficientEntitlement = errors.New("insufficient entitlement: no free readings and not enough credits")

	// Ledger errors
	ErrLedgerInconsistency = errors.New("ledger inconsistency: credits do not match ledger sum")
	ErrConcurrentUpdate    = errors.New("account was modified concurrently")
	ErrInvalidEntryKind    = errors.New("invalid ledger entry kind")
	ErrDuplicatePayment    = errors.New("payment reference already recorded")

	// Webhook errors
	ErrDuplicateEvent   = errors.New("webhook event already processed")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrUnknownPlan      = errors.New("unknown subscription plan")
	ErrMissingAccountID = errors.New("webhook event has no account id")
)

// ValidationError describes a rejected input field. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// GenerationError wraps a failed interpretation call. It is recovered by the
// orchestrator with a fallback and never returned to callers.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "interpretation generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// CascadeError is a reward engine failure after the reading committed.
// It is logged and swallowed.
type CascadeError struct {
	Engine string
	Err    error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("reward cascade %s: %v", e.Engine, e.Err)
}
func (e *CascadeError) Unwrap() error { return e.Err }
