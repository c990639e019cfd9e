package assumption

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrInvalidAssumption: an input violates a hard invariant (wacc <= g,
	// horizon < 1, shares <= 0, band outside [0,1), non-finite values).
	ErrInvalidAssumption = errors.New("invalid assumption")

	// ErrOutOfRange: an input is legal but outside the configured RangePolicy.
	ErrOutOfRange = errors.New("out of range input")
)

// Error names the field and the rule it broke.
type Error struct {
	Kind  error
	Field string
	Value float64
	Rule  string
}

func (e *Error) Error() string {
	if e.Rule == "required" {
		return fmt.Sprintf("%v: %s is required", e.Kind, e.Field)
	}
	return fmt.Sprintf("%v: %s=%g violates %s", e.Kind, e.Field, e.Value, e.Rule)
}

func (e *Error) Unwrap() error { return e.Kind }

// Invalid builds an ErrInvalidAssumption error.
func Invalid(field string, value float64, rule string) *Error {
	return &Error{Kind: ErrInvalidAssumption, Field: field, Value: value, Rule: rule}
}

// OutOfRange builds an ErrOutOfRange error.
func OutOfRange(field string, value float64, rule string) *Error {
	return &Error{Kind: ErrOutOfRange, Field: field, Value: value, Rule: rule}
}
