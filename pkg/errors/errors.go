// Package errors provides the error taxonomy for the webspace pipeline.
// The typed errors let callers distinguish retryable adapter failures,
// per-record validation skips, per-launch persistence skips, and lock
// contention programmatically via errors.Is.
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceUnavailable indicates a source adapter failed in a way that
	// may recover on retry.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = errors.New("operation canceled")

	// ErrLockHeld indicates the run lock is held by another owner.
	ErrLockHeld = errors.New("lock held by another owner")

	// ErrLockExpired indicates a lease lapsed while its owner was still working.
	ErrLockExpired = errors.New("lock expired")

	// ErrConflictResolved indicates an attempt to modify a resolved conflict
	// without reopening it first.
	ErrConflictResolved = errors.New("conflict already resolved")
)

// AdapterError represents a failure while fetching from a source adapter.
// Adapter errors are retried and, once retries are exhausted, degrade the
// source for the run without failing it.
type AdapterError struct {
	Source  string
	Kind    string // "network", "timeout", "parse"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("adapter %s: %s error: %s", e.Source, e.Kind, e.Message)
	}
	return fmt.Sprintf("adapter %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *AdapterError) Is(target error) bool {
	if e.Kind == "timeout" && target == ErrTimeout {
		return true
	}
	return target == ErrSourceUnavailable
}

// NewAdapterError creates a new AdapterError. An empty message falls back to
// the wrapped error's text.
func NewAdapterError(source, kind, message string, err error) *AdapterError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &AdapterError{Source: source, Kind: kind, Message: message, Err: err}
}

// ValidationError represents a per-record validation failure. The record is
// skipped; the batch continues.
type ValidationError struct {
	Source  string
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// PersistenceError represents a per-launch storage failure. The launch is
// skipped and reported; persistence of other launches continues.
type PersistenceError struct {
	Operation string // "upsert", "provenance", "conflict"
	Slug      string
	Err       error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("persistence failed during %s of %s: %v", e.Operation, e.Slug, e.Err)
	}
	return fmt.Sprintf("persistence failed during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(operation, slug string, err error) *PersistenceError {
	return &PersistenceError{Operation: operation, Slug: slug, Err: err}
}

// LockError represents a failure to acquire, renew, or release the run lock.
type LockError struct {
	Name    string
	Owner   string
	Holder  string // current holder when known
	Expired bool
	Message string
}

// Error implements the error interface.
func (e *LockError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("lock %s: %s (held by %s)", e.Name, e.Message, e.Holder)
	}
	return fmt.Sprintf("lock %s: %s", e.Name, e.Message)
}

// Is implements errors.Is support.
func (e *LockError) Is(target error) bool {
	if e.Expired {
		return target == ErrLockExpired
	}
	return target == ErrLockHeld
}

// NotFoundError represents an error when a resource is not found.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConfigError represents a configuration error. Configuration failures are
// the only fatal error class in the pipeline.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// TimeoutError represents an operation timeout.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Duration > 0 {
		return fmt.Sprintf("operation %s timed out after %s", e.Operation, e.Duration)
	}
	return fmt.Sprintf("operation %s timed out", e.Operation)
}

// Is implements errors.Is support.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Helper functions for error checking.

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsSourceUnavailable checks if an error indicates a retryable source failure.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsCanceled checks if an error is a cancellation error.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsLockHeld checks if an error indicates lock contention.
func IsLockHeld(err error) bool {
	return errors.Is(err, ErrLockHeld)
}

// IsLockExpired checks if an error indicates a lapsed lease.
func IsLockExpired(err error) bool {
	return errors.Is(err, ErrLockExpired)
}

// WrapValidation wraps an error as a ValidationError.
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapPersistence wraps an error as a PersistenceError.
func WrapPersistence(operation, slug string, err error) error {
	if err == nil {
		return nil
	}
	return NewPersistenceError(operation, slug, err)
}
