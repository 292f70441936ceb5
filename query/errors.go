package query

import (
	"errors"
	"fmt"
)

var ErrUsage = errors.New("invalid usage")

// UsageError reports a builder precondition that failed before any statement was built.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string { return fmt.Sprintf("query %s: %v", e.Op, e.Err) }

func (e *UsageError) Unwrap() error { return e.Err }

func usage(op string, format string, args ...any) error {
	return &UsageError{Op: op, Err: fmt.Errorf("%w: "+format, append([]any{ErrUsage}, args...)...)}
}

func usageErr(op string, err error) error { return &UsageError{Op: op, Err: err} }
