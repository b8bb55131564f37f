// pkg/honey_err/wrap.go

package honey_err

import (
	cerr "github.com/cockroachdb/errors"
)

func WrapValidationError(err error) error {
	return cerr.WithHint(cerr.WithStack(err), "validation failed")
}

// Skipf returns an error that wraps ErrParseSkipped with a reason.
func Skipf(format string, args ...interface{}) error {
	return cerr.Wrapf(ErrParseSkipped, format, args...)
}
