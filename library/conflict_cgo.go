//go:build cgo

package library

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// mattnUniqueViolation reports whether err is a github.com/mattn/go-sqlite3
// error and, if so, whether it is a unique constraint failure.
func mattnUniqueViolation(err error) (unique, ok bool) {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return mattnErr.ExtendedCode == sqlite3.ErrConstraintUnique, true
	}
	return false, false
}
