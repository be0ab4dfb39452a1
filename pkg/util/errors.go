// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per error class. Typed errors below unwrap to these
// so callers can classify with errors.Is.
var (
	ErrTransport             = errors.New("transport failure")
	ErrSessionUnsynchronized = fmt.Errorf("%w: session state unknown after interrupted transaction", ErrTransport)
	ErrExtraction            = errors.New("extraction failed")
	ErrPreconditionFailed    = errors.New("precondition not met")
	ErrValidationFailed      = errors.New("validation failed")
	ErrUnsupportedType       = errors.New("no applicable handler variant")
	ErrMergeConflict         = errors.New("merge conflict between handler variants")
	ErrCommandRejected       = errors.New("device rejected command")
	ErrConfirmMismatch       = errors.New("confirming read does not match written state")
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrSessionLocked         = errors.New("session locked by another holder")
)

// TransportError wraps a session failure (connection lost, timeout).
// It is fatal to the in-flight call and never retried by the engine.
type TransportError struct {
	Session string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %v", e.Session, e.Err)
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// NewTransportError creates a transport error
func NewTransportError(session string, err error) *TransportError {
	return &TransportError{Session: session, Err: err}
}

// ExtractionError reports a pattern that matched a line whose captured
// value could not be interpreted.
type ExtractionError struct {
	Pattern string
	Line    string
	LineNo  int
	Group   string
	Err     error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction failed at line %d %q (pattern %q)", e.LineNo, e.Line, e.Pattern)
	if e.Group != "" {
		msg += fmt.Sprintf(" group %q", e.Group)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return ErrExtraction
}

// PreconditionError represents a failed precondition check with context
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// UnsupportedTypeError is returned by a write for which no registered
// variant applies.
type UnsupportedTypeError struct {
	Path string
	Mode string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type at %s: no handler variant applies for %s", e.Path, e.Mode)
}

// Unwrap classifies the error as both unsupported and a validation failure;
// it is raised before any device I/O.
func (e *UnsupportedTypeError) Unwrap() []error {
	return []error{ErrUnsupportedType, ErrValidationFailed}
}

// MergeConflictError means two union-merge variants produced the same
// field. This is a registration bug, not a user error.
type MergeConflictError struct {
	Path   string
	Field  string
	First  string
	Second string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict at %s: field %q set by both %s and %s", e.Path, e.Field, e.First, e.Second)
}

func (e *MergeConflictError) Unwrap() error {
	return ErrMergeConflict
}

// CommandRejectedError carries the device's own error line found in a
// transaction's output.
type CommandRejectedError struct {
	Session string
	Line    string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("%s rejected command: %s", e.Session, e.Line)
}

func (e *CommandRejectedError) Unwrap() error {
	return ErrCommandRejected
}

// ConfirmError lists fields whose re-read value differs from what was written.
type ConfirmError struct {
	Path   string
	Fields []string
}

func (e *ConfirmError) Error() string {
	return fmt.Sprintf("confirm %s: fields differ after write: %s", e.Path, strings.Join(e.Fields, ", "))
}

func (e *ConfirmError) Unwrap() error {
	return ErrConfirmMismatch
}
