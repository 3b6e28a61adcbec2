//go:build !cgo

package library

import (
	_ "github.com/mattn/go-sqlite3"
)

// mattnUniqueViolation: without cgo github.com/mattn/go-sqlite3 is a stub
// whose driver never opens, so it cannot produce a sqlite3.Error.
func mattnUniqueViolation(err error) (unique, ok bool) {
	return false, false
}
