package library

import (
	"errors"
	"fmt"
)

// Error classes. Every error the library returns for a business-rule
// violation matches exactly one of these with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)

var (
	ErrBookNotFound        = fmt.Errorf("book %w", ErrNotFound)
	ErrBorrowerNotFound    = fmt.Errorf("borrower %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrNoActiveLoanFound   = fmt.Errorf("no active loan: %w", ErrNotFound)

	ErrBookNotAvailable         = fmt.Errorf("book not available: %w", ErrInvalidState)
	ErrTransactionAlreadyClosed = fmt.Errorf("transaction already closed: %w", ErrInvalidState)
	ErrInvalidStateTransition   = fmt.Errorf("invalid status transition: %w", ErrInvalidState)
	ErrBorrowerHasLoans         = fmt.Errorf("borrower has loan history: %w", ErrInvalidState)

	ErrMissingIdentifier = fmt.Errorf("book id or title required: %w", ErrValidation)
	ErrNoFieldsToUpdate  = fmt.Errorf("no fields to update: %w", ErrValidation)
	ErrInvalidStatus     = fmt.Errorf("invalid status: %w", ErrValidation)
	ErrInvalidInput      = fmt.Errorf("invalid input: %w", ErrValidation)
)

// TransitionError reports a book status change the availability rules do not
// allow. It matches ErrInvalidStateTransition, or ErrBookNotAvailable when a
// loan was refused.
type TransitionError struct {
	Op     Operation
	BookID int64
	Status BookStatus
	Target BookStatus
}

func (e *TransitionError) Error() string {
	switch {
	case e.Op == OpLend:
		return fmt.Sprintf("book %d is not available (status %s)", e.BookID, e.Status)
	case e.Op == OpRemove:
		return fmt.Sprintf("book %d cannot be removed while %s", e.BookID, e.Status)
	case e.Target != "":
		return fmt.Sprintf("book %d: cannot %s from %s to %s", e.BookID, e.Op, e.Status, e.Target)
	}
	return fmt.Sprintf("book %d: cannot %s while %s", e.BookID, e.Op, e.Status)
}

func (e *TransitionError) Unwrap() error {
	if e.Op == OpLend {
		return ErrBookNotAvailable
	}
	return ErrInvalidStateTransition
}

// ClosedLoanError is returned when a loan that was already returned is
// returned again.
type ClosedLoanError struct {
	TransactionID int64
	ReturnedOn    Date
}

func (e *ClosedLoanError) Error() string {
	return fmt.Sprintf("transaction %d already returned on %s", e.TransactionID, e.ReturnedOn)
}

func (e *ClosedLoanError) Unwrap() error { return ErrTransactionAlreadyClosed }

func bookNotFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrBookNotFound, id)
}

func borrowerNotFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrBorrowerNotFound, id)
}

func transactionNotFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrTransactionNotFound, id)
}

func invalidStatus(s string) error {
	return fmt.Errorf("%w %q", ErrInvalidStatus, s)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
