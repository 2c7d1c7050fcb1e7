package errors

import (
	"errors"
	"fmt"
	"net"
)

// ConfigError reports an invalid rubric or engine configuration. It is fatal:
// an engine is never constructed from a bad rubric source.
type ConfigError struct {
	Field   string
	Err     error
	Message string
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		if e.Field != "" {
			return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
		}
		return "config: " + e.Message
	}
	return fmt.Sprintf("config error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError reports rejected caller input. The operation that raised it
// has not mutated any state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return "validation: " + e.Message
}

// JudgeTransientError marks a judge call failure (timeout, transport error,
// unparseable response). It is always recovered locally with the fallback
// judge and never surfaces past an evaluation.
type JudgeTransientError struct {
	Err     error
	Message string
}

func (e *JudgeTransientError) Error() string {
	if e.Message != "" {
		return "judge: " + e.Message
	}
	return fmt.Sprintf("judge: transient failure: %v", e.Err)
}

func (e *JudgeTransientError) Unwrap() error {
	return e.Err
}

// PreconditionError reports a rejected operation whose precondition did not
// hold, e.g. a concurrent recompute. Retryable; state may be partially reset.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return "precondition: " + e.Message
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsJudgeTransient reports whether err is a recoverable judge failure.
func IsJudgeTransient(err error) bool {
	if err == nil {
		return false
	}
	var je *JudgeTransientError
	if errors.As(err, &je) {
		return true
	}
	return isNetworkError(err)
}

// IsPrecondition reports whether err is a retryable precondition failure.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// NewConfigError creates a configuration error for the given field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewValidationError creates a caller input error for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewJudgeTransientError wraps a judge call failure.
func NewJudgeTransientError(err error, message string) *JudgeTransientError {
	return &JudgeTransientError{Err: err, Message: message}
}

// NewPreconditionError creates a retryable precondition failure.
func NewPreconditionError(message string) *PreconditionError {
	return &PreconditionError{Message: message}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
