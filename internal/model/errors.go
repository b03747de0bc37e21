package model

import (
	"fmt"
	"math"
)

// ValidationError rejects a request before anything is computed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CheckRange returns a ValidationError when v is negative or above ceiling.
// A ceiling of zero disables the upper bound.
func CheckRange(field string, v, ceiling float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Invalid(field, "must be a finite number")
	}
	if v < 0 {
		return Invalid(field, "must not be negative, got %g", v)
	}
	if ceiling > 0 && v > ceiling {
		return Invalid(field, "exceeds sanity ceiling %g, got %g", ceiling, v)
	}
	return nil
}
