package library

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	moderncsqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// isUniqueViolation reports whether err is a unique constraint failure from
// any of the supported drivers.
func isUniqueViolation(err error) bool {
	if unique, ok := mattnUniqueViolation(err); ok {
		return unique
	}
	var modernErr *moderncsqlite.Error
	if errors.As(err, &modernErr) {
		return modernErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.UniqueViolation
	}
	return false
}

// lostLoanRace turns an open-loan index violation into the same answer the
// availability check gives, marked as a conflict so callers may retry.
func lostLoanRace(bookID int64, cause error) error {
	return errors.Join(
		&TransitionError{Op: OpLend, BookID: bookID, Status: StatusBorrowed, Target: StatusBorrowed},
		ErrConflict,
		cause,
	)
}
