package sheet

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidKind      = errors.New("invalid question kind")
	ErrInvalidIndex     = errors.New("question index must be positive")
	ErrInvalidOption    = errors.New("option must be one of A, B, C, D")
	ErrInvalidStatement = errors.New("statement must be one of a, b, c, d")
	ErrInvalidColumn    = errors.New("digit column must be between 0 and 3")
	ErrInvalidDigit     = errors.New("digit must be between 0 and 9")
	ErrInvalidSlot      = errors.New("invalid slot for question kind")
	ErrInvalidValue     = errors.New("invalid selection value")
)

// SelectionError is returned when a selection is outside the valid domain of
// its question kind. The sheet is left unchanged.
type SelectionError struct {
	Key   Key
	Slot  string
	Value string
	Err   error
}

func (e *SelectionError) Error() string {
	if e.Slot != "" {
		return fmt.Sprintf("select %s[%s]=%q: %v", e.Key, e.Slot, e.Value, e.Err)
	}
	return fmt.Sprintf("select %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *SelectionError) Unwrap() error {
	return e.Err
}

// IsSelectionError reports whether err came from rejecting a selection.
func IsSelectionError(err error) bool {
	var se *SelectionError
	return errors.As(err, &se)
}
