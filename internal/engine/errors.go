package engine

import (
	"errors"
	"fmt"
)

// ErrNoEligibleStaff means no candidate passed the eligibility filter.
var ErrNoEligibleStaff = errors.New("no staff member is eligible for this work item")

// ValidationError rejects malformed or contradictory input before any
// state change.
type ValidationError struct {
	Msg     string
	Details map[string]any
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError means a concurrent writer won a capacity race and the
// operation cannot proceed against the new state.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}
