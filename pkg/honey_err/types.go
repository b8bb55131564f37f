// pkg/honey_err/types.go

package honey_err

import "errors"

// ErrParseSkipped marks an artifact that could not be normalised. It is
// never returned from a query; the engine drops the artifact and moves on.
var ErrParseSkipped = errors.New("artifact skipped")

// UserError marks an error as expected and recoverable by the user.
type UserError struct {
	cause error
}

func (e *UserError) Error() string {
	return e.cause.Error()
}

func (e *UserError) Unwrap() error {
	return e.cause
}
