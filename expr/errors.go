package expr

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedExpression = errors.New("unsupported expression")
	ErrJoinRequired          = errors.New("join required, use sub-queries")
	ErrUnboundParameter      = errors.New("unbound parameter")
	ErrUnknownPath           = errors.New("unknown field path")
	ErrCollectionPath        = errors.New("collection fields cannot be traversed in expressions")
)

// UnsupportedExpressionError carries the subtree the compiler could not translate.
type UnsupportedExpressionError struct {
	Expr   Expr
	Reason string
}

func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", ErrUnsupportedExpression, describe(e.Expr), e.Reason)
}

func (e *UnsupportedExpressionError) Unwrap() error { return ErrUnsupportedExpression }

func unsupported(e Expr, format string, args ...any) error {
	return &UnsupportedExpressionError{Expr: e, Reason: fmt.Sprintf(format, args...)}
}

func describe(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}
