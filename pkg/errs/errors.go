// Package errs holds the error taxonomy shared by the money-correctness services.
package errs

import (
	"errors"
	"fmt"
)

// ValidationError rejects input before any state change. Field names the offending input.
type ValidationError struct {
	Field string
	Code  string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed on %s: %s: %v", e.Field, e.Code, e.Err)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Code)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation builds a ValidationError for field wrapping the given sentinel.
func Validation(field string, err error) error {
	code := "invalid"
	if err != nil {
		code = err.Error()
	}
	return &ValidationError{Field: field, Code: code, Err: err}
}

// ConfigurationError reports a missing or corrupt rate configuration.
// Reads may fall back to defaults; settlement must fail closed.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func Configuration(reason string, err error) error {
	return &ConfigurationError{Reason: reason, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// FieldOf returns the offending field of a ValidationError, or "".
func FieldOf(err error) string {
	var target *ValidationError
	if errors.As(err, &target) {
		return target.Field
	}
	return ""
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
