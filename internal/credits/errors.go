package credits

import (
	"context"
	"errors"
	"fmt"

	dbutil "github.com/paperdesk/creditledger/internal/db"
)

// Sentinel errors returned by the accounting engine.
var (
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("credits: amount must be a positive integer")
	// ErrInsufficientCredits indicates the balance cannot cover a consumption.
	ErrInsufficientCredits = errors.New("credits: insufficient credits")
	// ErrAccountNotFound indicates the user has no credit account yet.
	ErrAccountNotFound = errors.New("credits: account not found")
	// ErrPackageNotFound indicates the purchased package does not exist.
	ErrPackageNotFound = errors.New("credits: package not found")
	// ErrPackageInactive indicates the purchased package is no longer offered.
	ErrPackageInactive = errors.New("credits: package inactive")
	// ErrDuplicateReference indicates a reference was already used by a different operation.
	ErrDuplicateReference = errors.New("credits: duplicate reference")
	// ErrReservedReference indicates a caller reference in a namespace the ledger writes itself.
	ErrReservedReference = errors.New("credits: reserved reference")
	// ErrInvalidEventType indicates an event type the operation does not accept.
	ErrInvalidEventType = errors.New("credits: invalid event type")
	// ErrInvalidMetadata indicates metadata that does not match the event type.
	ErrInvalidMetadata = errors.New("credits: invalid metadata")
	// ErrInvalidDay indicates a day that is not YYYY-MM-DD.
	ErrInvalidDay = errors.New("credits: invalid day")
	// ErrInvalidUser indicates a zero user ID.
	ErrInvalidUser = errors.New("credits: invalid user id")
	// ErrStorage indicates a persistence failure. Callers may retry.
	ErrStorage = errors.New("credits: storage error")
)

// StorageError wraps a persistence failure for a named operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("credits: %s: storage error", e.Op)
	}
	return fmt.Sprintf("credits: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrStorage and the underlying cause to errors.Is.
func (e *StorageError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return []error{ErrStorage, e.Err}
}

// domainErrors are returned to callers unchanged.
var domainErrors = []error{
	ErrInvalidAmount,
	ErrInsufficientCredits,
	ErrAccountNotFound,
	ErrPackageNotFound,
	ErrPackageInactive,
	ErrDuplicateReference,
	ErrReservedReference,
	ErrInvalidEventType,
	ErrInvalidMetadata,
	ErrInvalidDay,
	ErrInvalidUser,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapStorage converts err into a StorageError unless it is a domain error.
func wrapStorage(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStorage) || dbutil.IsTransientConflict(err) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrPackageNotFound)
}
