package utils

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid parameter shape or range. It is raised
// before any computation starts.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError for a field.
//
// Parameters:
//   - field: The offending parameter name (may be empty).
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ConfigurationError.
func NewConfigurationError(field, message string) error {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}

// NewConfigurationErrorf creates a new ConfigurationError with a formatted message.
func NewConfigurationErrorf(field, format string, args ...interface{}) error {
	return &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// InsufficientDataError reports a sample too small for the requested fit.
type InsufficientDataError struct {
	Required int
	Got      int
	Message  string
}

// Error returns the error message string.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s (need %d, got %d)", e.Message, e.Required, e.Got)
}

// NewInsufficientDataError creates a new InsufficientDataError.
//
// Parameters:
//   - message: What was being attempted.
//   - required: The minimum count needed.
//   - got: The count actually available.
//
// Returns:
//   - An error interface wrapping the InsufficientDataError.
func NewInsufficientDataError(message string, required, got int) error {
	return &InsufficientDataError{
		Required: required,
		Got:      got,
		Message:  message,
	}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsInsufficientData reports whether err wraps an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
