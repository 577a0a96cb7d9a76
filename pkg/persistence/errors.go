// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrSegmentNotFound indicates a segment was not found by the given identifier.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrVersionConflict indicates a compare-and-swap update found the row in
	// a different state than expected. The caller holds a stale view,
	// typically because a duplicate queue delivery already applied the
	// transition.
	ErrVersionConflict = errors.New("execution version conflict")

	// ErrExecutionAlreadyExists indicates an execution with the same identifier already exists.
	ErrExecutionAlreadyExists = errors.New("execution already exists")
)

// ExecutionError wraps execution-related storage errors with context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrSegmentNotFound)
}

// IsVersionConflict reports whether err is a compare-and-swap conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
