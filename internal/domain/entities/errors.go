package entities

import (
	"errors"
	"fmt"
)

// ErrorType categorizes a failure so callers can map it to HTTP status
// codes and retry decisions without inspecting messages.
type ErrorType string

const (
	ErrTypeValidation ErrorType = "validation"
	ErrTypeNotReady   ErrorType = "not_ready"
	ErrTypeEmbedding  ErrorType = "embedding"
	ErrTypeRetrieval  ErrorType = "retrieval"
	ErrTypeGeneration ErrorType = "generation"
	ErrTypeAuth       ErrorType = "auth"
	ErrTypeRateLimit  ErrorType = "rate_limit"
	ErrTypeTimeout    ErrorType = "timeout"
	ErrTypeProvider   ErrorType = "provider"
	ErrTypeConfig     ErrorType = "config"
)

// DomainError is a structured error with a type and optional context
// details. Details carry debugging facts (retrieved chunk counts, stage
// latencies) across failure paths.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]any
}

// NewDomainError creates a new domain error.
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on error type so sentinel comparisons work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail attaches a context detail and returns the error for chaining.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ErrorTypeOf returns the type of a domain error, or "" for other errors.
func ErrorTypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// ErrorDetails returns the details map of a domain error, or nil.
func ErrorDetails(err error) map[string]any {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// IsTransient reports whether the error class is worth retrying.
// Auth and validation failures never are.
func IsTransient(err error) bool {
	switch ErrorTypeOf(err) {
	case ErrTypeRateLimit, ErrTypeTimeout, ErrTypeProvider:
		return true
	}
	return false
}

// IsConfigError reports whether the error is a fatal configuration
// problem (dimension mismatch, missing credentials) rather than a
// per-request failure.
func IsConfigError(err error) bool {
	return ErrorTypeOf(err) == ErrTypeConfig
}
