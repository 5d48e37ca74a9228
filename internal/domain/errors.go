package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is; the API layer maps each
// kind to an HTTP status, the scheduler decides retryability from them.
var (
	// ErrValidation marks a synchronous rejection (bad amount, wrong
	// state, missing end date). Not retryable; surfaced to the caller.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks an operation whose precondition was invalidated
	// by a concurrent mutation. No partial effect; safe to retry because
	// a retry re-validates against fresh state.
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrTransient marks a store timeout or unavailability. Retryable
	// with backoff; never silently swallowed.
	ErrTransient = errors.New("transient store failure")

	// ErrInvariant marks a correctness bug (e.g. withdrawable going
	// negative), not a user error. The operation aborts and the event
	// must be logged as a defect.
	ErrInvariant = errors.New("ledger invariant violated")

	// ErrCampaignNotFound is returned when a campaign id resolves to
	// nothing.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrNotOwner is returned when a caller attempts an owner-only
	// operation on someone else's campaign.
	ErrNotOwner = errors.New("requester is not the campaign owner")
)

// Validationf wraps ErrValidation with a caller-facing reason
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with context
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Transientf wraps ErrTransient with context
func Transientf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// Invariantf wraps ErrInvariant with context
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
