package types

import "errors"

// Error taxonomy shared by the state machine, the ledger and the repositories.
// Callers match with errors.Is; the message carries the detail.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence failure")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// IsRetryable reports whether a failed operation may succeed when repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrConflict)
}
