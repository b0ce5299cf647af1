// Package-level error types shared by every persistence implementation.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrBalanceNotFound indicates no stored balance entry for the given user.
	ErrBalanceNotFound = errors.New("balance not found")
)

// WorkflowError wraps workflow storage errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID uint64
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %d: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op string, workflowID uint64, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// BalanceError wraps balance storage errors with operation context.
type BalanceError struct {
	Op   string
	User string
	Err  error
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("%s operation failed for balance of %s: %v", e.Op, e.User, e.Err)
}

func (e *BalanceError) Unwrap() error {
	return e.Err
}

func (e *BalanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
