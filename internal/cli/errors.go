package cli

import (
	"errors"
	"fmt"

	"home-library/internal/config"
	"home-library/library"
)

// usageError marks bad command lines: unknown commands, bad flags, missing
// or malformed arguments.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// exitCode maps an error to the process exit status. Domain, usage and
// configuration errors are the user's to fix; anything else is a store or
// system failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case isUserError(err):
		return exitUserError
	default:
		return exitSysError
	}
}

func isUserError(err error) bool {
	var ue usageError
	return errors.As(err, &ue) ||
		errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, library.ErrNotFound) ||
		errors.Is(err, library.ErrInvalidState) ||
		errors.Is(err, library.ErrValidation) ||
		errors.Is(err, library.ErrConflict)
}

// describeError returns the message shown to the user. Domain errors already
// name the identifier and the state involved; store failures get a generic
// line with the cause appended.
func describeError(err error) string {
	if isUserError(err) {
		return err.Error()
	}
	return fmt.Sprintf("the library store could not complete the request: %v", err)
}
