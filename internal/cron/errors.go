package cron

import (
	"errors"
	"fmt"
)

// ErrInvalidExpression is matched by every *InvalidExpressionError via errors.Is.
var ErrInvalidExpression = errors.New("invalid cron expression")

// InvalidExpressionError describes why an expression was rejected.
// Field is the zero-based field index, or -1 when the whole expression is at fault.
type InvalidExpressionError struct {
	Expression string
	Field      int
	Token      string
	Reason     string
}

func (e *InvalidExpressionError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("invalid cron expression %q: %s", e.Expression, e.Reason)
	}
	return fmt.Sprintf("invalid cron expression %q: field %d (%s) %q: %s",
		e.Expression, e.Field+1, fieldBounds[e.Field].name, e.Token, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidExpression) work.
func (e *InvalidExpressionError) Is(target error) bool {
	return target == ErrInvalidExpression
}
