package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed       ErrorCode = "CMDW1001"
	ErrCodeAuthenticationFailed   ErrorCode = "CMDW1002"
	ErrCodeCredentialsUnavailable ErrorCode = "CMDW1003"

	// Configuration errors (2xxx)
	ErrCodeConfigInvalid   ErrorCode = "CMDW2001"
	ErrCodeConfigNotFound  ErrorCode = "CMDW2002"
	ErrCodeRegistryInvalid ErrorCode = "CMDW2003"

	// Catalog errors (3xxx)
	ErrCodeNamespaceMissing    ErrorCode = "CMDW3001"
	ErrCodeObjectCreateFailed  ErrorCode = "CMDW3002"
	ErrCodeViewCreateFailed    ErrorCode = "CMDW3003"
	ErrCodeMaterializeFailed   ErrorCode = "CMDW3004"
	ErrCodeMetadataFetchFailed ErrorCode = "CMDW3005"
	ErrCodeObjectNotFound      ErrorCode = "CMDW3006"
	ErrCodeListFailed          ErrorCode = "CMDW3007"

	// Query errors (4xxx)
	ErrCodeQueryBuild         ErrorCode = "CMDW4001"
	ErrCodeQueryFailed        ErrorCode = "CMDW4002"
	ErrCodeVerificationFailed ErrorCode = "CMDW4003"

	// Output errors (5xxx)
	ErrCodeReportWrite ErrorCode = "CMDW5001"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "CMDW9001"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // The run cannot continue
	SeverityError    ErrorSeverity = "ERROR"    // One object failed, the run continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Optional step failed
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	return b.String()
}

// Detailed renders the error with its suggestions, one per line.
func (e *AppError) Detailed() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// NamespaceMissingError reports that the target dataset/schema does not exist.
// The remediation command is attached as the first suggestion.
func NamespaceMissingError(namespace, remediation string, cause error) *AppError {
	err := New(ErrCodeNamespaceMissing, fmt.Sprintf("Namespace %s not found", namespace)).
		WithSeverity(SeverityCritical).
		WithContext("namespace", namespace)
	err.Cause = cause
	if remediation != "" {
		err.WithSuggestions(remediation)
	}
	return err
}

// ObjectError wraps a catalog failure for a single named object.
func ObjectError(code ErrorCode, qualifiedName string, cause error) *AppError {
	var verb string
	switch code {
	case ErrCodeObjectCreateFailed:
		verb = "create external table"
	case ErrCodeViewCreateFailed:
		verb = "create view"
	case ErrCodeMaterializeFailed:
		verb = "create table"
	case ErrCodeMetadataFetchFailed:
		verb = "get metadata for"
	case ErrCodeVerificationFailed:
		verb = "verify"
	default:
		verb = "process"
	}
	return Wrap(cause, code, fmt.Sprintf("Failed to %s %s", verb, qualifiedName)).
		WithContext("object", qualifiedName)
}

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse credentials are valid",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'cmdwh config show' to inspect the effective configuration",
		)
}

// QueryError creates a query execution error
func QueryError(message string, query string, cause error) *AppError {
	return Wrap(cause, ErrCodeQueryFailed, message).
		WithContext("query", truncateString(query, 200))
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if ae, ok := err.(*AppError); ok && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
