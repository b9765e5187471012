// Package domain defines the core types and errors of the SQL sandbox.
package domain

import (
	"fmt"
	"time"
)

// RejectionError indicates the gatekeeper refused a statement before execution.
// It is a user-input failure and is always reported as an incorrect verdict.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// ExecutionError carries the engine's native error text for a statement that
// passed the gatekeeper but failed while running.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string { return e.Message }

// SeedError indicates a session database could not be initialised from the
// seed script. It is a deployment defect, never a grading verdict.
type SeedError struct {
	Index     int    // zero-based position of the failing statement
	Statement string // truncated statement text
	Err       error
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("seed initialisation failed at statement %d: %v", e.Index+1, e.Err)
}

func (e *SeedError) Unwrap() error { return e.Err }

// RateLimitError indicates a session submitted queries faster than allowed.
type RateLimitError struct {
	SessionID  string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for session %q, retry after %s", e.SessionID, e.RetryAfter)
}

// ValidationError indicates invalid input that is not SQL text, such as an
// empty session id or a malformed exercise definition.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a requested resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ErrRejected creates a RejectionError with a formatted reason.
func ErrRejected(format string, args ...interface{}) *RejectionError {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// ErrExecution creates an ExecutionError from the engine's message.
func ErrExecution(msg string) *ExecutionError {
	return &ExecutionError{Message: msg}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}
