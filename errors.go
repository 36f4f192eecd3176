package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("ledger: not found")
	ErrInvalidInput = errors.New("ledger: invalid input")
	ErrConflict     = errors.New("ledger: conflict")

	// Owner errors
	ErrOwnerNotFound = errors.New("ledger: owner not found")

	// Account errors
	ErrAccountNotFound    = errors.New("ledger: account not found")
	ErrAccountExists      = fmt.Errorf("%w: owner already has an account", ErrConflict)
	ErrAccountHasPostings = fmt.Errorf("%w: account still has postings", ErrConflict)
	ErrBalanceDrift       = fmt.Errorf("%w: stored balance differs from postings", ErrConflict)
	ErrInvalidAmount      = errors.New("ledger: invalid amount")

	// Payment errors
	ErrPaymentNotFound = errors.New("ledger: payment not found")

	// Store errors
	ErrStorageFailure = errors.New("ledger: storage failure")
	ErrStoreClosed    = errors.New("ledger: store is closed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("ledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// StorageError wraps a backend failure so that callers can match
// ErrStorageFailure and still reach the driver error.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOwnerNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsConflict returns true if the operation was refused because of the
// current state of the data.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidAmount returns true if an amount was missing, unparseable or out
// of range.
func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

// IsInvalidInput returns true if a non-amount argument was rejected.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsStorageFailure returns true if the backend failed.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure) || errors.Is(err, ErrStoreClosed)
}
