// Package errors provides structured error handling for lanwatch operations.
// It defines error codes, error types for the scan, configuration, storage
// and notification layers, and utilities for creating and classifying errors.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Scan errors.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeToolUnavailable  ErrorCode = "TOOL_UNAVAILABLE"
	CodeParseFailure     ErrorCode = "PARSE_FAILURE"
	CodeScanFailed       ErrorCode = "SCAN_FAILED"

	// Storage errors.
	CodeStoreOpen  ErrorCode = "STORE_OPEN"
	CodeStoreQuery ErrorCode = "STORE_QUERY"

	// Notification errors.
	CodeNotifyFailed ErrorCode = "NOTIFY_FAILED"
	CodeQueueFull    ErrorCode = "QUEUE_FULL"
)

// ScanError represents an error produced by a scan strategy. Strategy
// names the strategy that failed; the fallback chain inspects Code to
// decide whether the failure is worth more than a warning.
type ScanError struct {
	Code     ErrorCode
	Message  string
	Strategy string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("[%s] %s (strategy: %s)", e.Code, e.Message, e.Strategy)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithStrategy creates a scan error for a specific strategy.
func NewScanErrorWithStrategy(code ErrorCode, message, strategy string) *ScanError {
	return &ScanError{
		Code:     code,
		Message:  message,
		Strategy: strategy,
		Context:  make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithStrategy wraps an error with strategy information.
func WrapScanErrorWithStrategy(code ErrorCode, message, strategy string, err error) *ScanError {
	return &ScanError{
		Code:     code,
		Message:  message,
		Strategy: strategy,
		Cause:    err,
		Context:  make(map[string]interface{}),
	}
}

// ConfigError represents configuration-related errors. These are fatal
// at startup; during a reload the caller keeps the previous snapshot.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// StoreError represents event-store errors. Store failures are logged
// and dropped; they never affect the presence state machine.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// WrapStoreError wraps an existing error as a store error.
func WrapStoreError(code ErrorCode, message, operation string, err error) *StoreError {
	return &StoreError{
		Code:      code,
		Message:   message,
		Operation: operation,
		Cause:     err,
	}
}

// NotifyError represents notification delivery errors. Delivery is
// at-most-once: these are logged and never retried.
type NotifyError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *NotifyError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *NotifyError) Unwrap() error {
	return e.Cause
}

// NewNotifyError creates a new notification error.
func NewNotifyError(code ErrorCode, message string) *NotifyError {
	return &NotifyError{
		Code:    code,
		Message: message,
	}
}

// WrapNotifyError wraps an existing error as a notification error.
func WrapNotifyError(code ErrorCode, message string, err error) *NotifyError {
	return &NotifyError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *ConfigError:
		return e.Code
	case *StoreError:
		return e.Code
	case *NotifyError:
		return e.Code
	}
	return CodeUnknown
}

// IsFatal determines if an error indicates a condition that should stop
// startup. Once the monitor loop is running nothing is fatal: failed
// cycles are skipped and retried on the next interval.
func IsFatal(err error) bool {
	code := GetCode(err)
	switch code {
	case CodeConfiguration, CodeValidation:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrToolUnavailable creates an error for a missing scan tool.
func ErrToolUnavailable(strategy, tool string) *ScanError {
	return NewScanErrorWithStrategy(CodeToolUnavailable,
		fmt.Sprintf("required tool %q not found in PATH", tool), strategy)
}

// ErrScanTimeout creates an error for scan timeouts.
func ErrScanTimeout(strategy string) *ScanError {
	return NewScanErrorWithStrategy(CodeTimeout, "scan operation timed out", strategy)
}

// ErrPermissionDenied creates an error for privileged scan failures.
func ErrPermissionDenied(strategy string, err error) *ScanError {
	return WrapScanErrorWithStrategy(CodePermissionDenied,
		"insufficient privileges for scan", strategy, err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "required configuration field missing", field, nil)
}
