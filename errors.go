package runflo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/runflo/runflo/types"
)

// RuntimeError represents an operational error that should lead to exit
// code 2: bad configuration, inability to start workers, and the like.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError.
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError names the units that failed in a run (exit code 1).
type TestFailureError struct {
	Specs []types.Spec
}

func (e *TestFailureError) Error() string {
	names := make([]string, len(e.Specs))
	for i, s := range e.Specs {
		names[i] = s.String()
	}
	return fmt.Sprintf("%d unit(s) failed: %s", len(e.Specs), strings.Join(names, ", "))
}

// NewTestFailureError creates a new TestFailureError.
func NewTestFailureError(specs ...types.Spec) *TestFailureError {
	return &TestFailureError{Specs: specs}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError.
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
