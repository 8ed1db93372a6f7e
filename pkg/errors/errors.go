// Package errors defines the error taxonomy of the reconciliation engine.
//
// Every typed error answers errors.Is for one sentinel, so the HTTP layer
// and the CLI can map failures to status codes without knowing the
// concrete type:
//
//	ErrInvalidInput   ValidationError, ConfigError, ParseError
//	ErrBatchTooLarge  BatchTooLargeError
//	ErrTimeout        TimeoutError
//	ErrCanceled       CanceledError
//	ErrNotFound       NotFoundError
//
// IOError and ResourceError only wrap their cause.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// New is errors.New.
var New = errors.New

// As is errors.As, re-exported so callers need only this package.
var As = errors.As

// Sentinels matched by the typed errors below.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrBatchTooLarge = errors.New("batch too large")
	ErrTimeout       = errors.New("operation timed out")
	ErrCanceled      = errors.New("operation canceled")
)

// IsNotFound reports whether err is a missing job or resource.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports whether err is a duplicate job id.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidationError reports whether err is bad input or configuration.
func IsValidationError(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsBatchTooLarge reports whether err is a rejected oversized batch.
func IsBatchTooLarge(err error) bool { return errors.Is(err, ErrBatchTooLarge) }

// IsTimeout reports whether err is an exceeded computation budget.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsCanceled reports whether err is an abandoned computation.
func IsCanceled(err error) bool { return errors.Is(err, ErrCanceled) }

// NotFoundError is returned for lookups of unknown ids.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError returns a NotFoundError for the resource id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError rejects a request field or engine setting before any
// work starts.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Is matches ErrInvalidInput.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// BatchTooLargeError rejects a batch above max_batch_size. No job is
// recorded for it.
type BatchTooLargeError struct {
	Size  int
	Limit int
}

// NewBatchTooLargeError returns a BatchTooLargeError for a batch of size.
func NewBatchTooLargeError(size, limit int) *BatchTooLargeError {
	return &BatchTooLargeError{Size: size, Limit: limit}
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch of %d records exceeds maximum of %d", e.Size, e.Limit)
}

// Is matches ErrBatchTooLarge.
func (e *BatchTooLargeError) Is(target error) bool { return target == ErrBatchTooLarge }

// ConfigError is a configuration file or environment value that could
// not be loaded.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// NewConfigError returns a ConfigError for component wrapping err.
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Component == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is matches ErrInvalidInput.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidInput }

// ParseError is a record or candidate file that could not be decoded.
type ParseError struct {
	Format  string // json or yaml
	File    string
	Message string
	Err     error
}

// NewParseError returns a ParseError for file in format.
func NewParseError(format, file, message string, err error) *ParseError {
	return &ParseError{Format: format, File: file, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches ErrInvalidInput.
func (e *ParseError) Is(target error) bool { return target == ErrInvalidInput }

// TimeoutError is a reconciliation that ran past its budget. The engine
// records a failed job before returning it.
type TimeoutError struct {
	Operation string
	Duration  string
	Message   string
}

// NewTimeoutError returns a TimeoutError for operation.
func NewTimeoutError(operation, duration, message string) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration, Message: message}
}

func (e *TimeoutError) Error() string {
	if e.Duration == "" {
		return fmt.Sprintf("operation %s timed out: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("operation %s timed out after %s: %s", e.Operation, e.Duration, e.Message)
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CanceledError is a computation abandoned because its caller went away.
type CanceledError struct {
	Operation string
	Err       error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("operation %s canceled", e.Operation)
}

func (e *CanceledError) Unwrap() error { return e.Err }

// Is matches ErrCanceled.
func (e *CanceledError) Is(target error) bool { return target == ErrCanceled }

// FromContext maps a context error onto the taxonomy: deadline expiry
// becomes a TimeoutError and anything else a CanceledError.
func FromContext(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(operation, "", err.Error())
	default:
		return &CanceledError{Operation: operation, Err: err}
	}
}

// IOError wraps a failed read or write of a local file.
type IOError struct {
	Operation string // read, write, open
	Path      string
	Err       error
}

// NewIOError returns an IOError for path.
func NewIOError(operation, path string, err error) *IOError {
	return &IOError{Operation: operation, Path: path, Err: err}
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("IO error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ResourceError wraps a failed operation on the job store, the engine or
// the server.
type ResourceError struct {
	Operation string // create, get, list, migrate
	Resource  string // job, job store, engine
	ID        string
	Err       error
}

// NewResourceError returns a ResourceError for resource id.
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	return &ResourceError{Operation: operation, Resource: resource, ID: id, Err: err}
}

func (e *ResourceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Resource, e.Err)
	}
	return fmt.Sprintf("failed to %s %s %s: %v", e.Operation, e.Resource, e.ID, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// WrapValidation turns err into a ValidationError for field. Nil stays nil.
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps err in an IOError. Nil stays nil.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps err in a ResourceError. Nil stays nil.
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps err in a ParseError. Nil stays nil.
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
