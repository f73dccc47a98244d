package agentparty

import (
	"errors"
	"fmt"
	"time"
)

// Error codes
const (
	ErrCodeAlreadyActive       = "ALREADY_ACTIVE"
	ErrCodeNoActiveWorkflow    = "NO_ACTIVE_WORKFLOW"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidStep         = "INVALID_STEP"
	ErrCodeApprovalNotRequired = "APPROVAL_NOT_REQUIRED"
	ErrCodeReviewFailed        = "REVIEW_FAILED"
	ErrCodeStorage             = "STORAGE_ERROR"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeBudgetExceeded      = "BUDGET_EXCEEDED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// WorkflowError is a structured error carrying a stable code so callers can
// map it to a tool-call error result without string matching.
type WorkflowError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Step      string    `json:"step,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// Error implements the error interface
func (e *WorkflowError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s (step: %s)", e.Code, msg, e.Step)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap exposes the wrapped cause
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a new workflow error
func NewWorkflowError(code, format string, args ...any) *WorkflowError {
	return &WorkflowError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
}

// NewWorkflowErrorWithStep creates a workflow error carrying step context
func NewWorkflowErrorWithStep(code, step, format string, args ...any) *WorkflowError {
	e := NewWorkflowError(code, format, args...)
	e.Step = step
	return e
}

// WrapWorkflowError wraps an underlying cause with a code and message
func WrapWorkflowError(code string, err error, format string, args ...any) *WorkflowError {
	e := NewWorkflowError(code, format, args...)
	e.Err = err
	return e
}

// ErrorCode extracts the code from an error chain, INTERNAL_ERROR when the
// chain contains no WorkflowError
func ErrorCode(err error) string {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code
	}
	return ErrCodeInternalError
}

// IsCode reports whether the error chain carries the given code
func IsCode(err error, code string) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}
