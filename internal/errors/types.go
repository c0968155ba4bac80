// Package errors provides structured error types and handling utilities
// for the Hygieia health engine.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a specific error condition
type ErrorCode string

// Error codes for different types of failures
const (
	// Client errors (4xx)
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidMetric    ErrorCode = "INVALID_METRIC"

	// Server errors (5xx)
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"

	// Evaluation errors
	ErrCodeEvaluationFailed ErrorCode = "EVALUATION_FAILED"
	ErrCodeUnknownRuleType  ErrorCode = "UNKNOWN_RULE_TYPE"
	ErrCodeQueueFull        ErrorCode = "QUEUE_FULL"

	// Delivery errors
	ErrCodeNotificationError ErrorCode = "NOTIFICATION_ERROR"
)

// ErrorCategory represents the type of error for handling strategy
type ErrorCategory string

const (
	// CategoryClientError represents user/client mistakes (4xx HTTP errors)
	CategoryClientError ErrorCategory = "CLIENT_ERROR"
	// CategoryServerError represents our system errors (5xx HTTP errors)
	CategoryServerError ErrorCategory = "SERVER_ERROR"
	// CategoryExternalError represents collaborator failures (store, notification channel)
	CategoryExternalError ErrorCategory = "EXTERNAL_ERROR"
	// CategoryRetryableError represents errors that can be retried
	CategoryRetryableError ErrorCategory = "RETRYABLE_ERROR"
	// CategoryTimeoutError represents timeout related errors
	CategoryTimeoutError ErrorCategory = "TIMEOUT_ERROR"
)

// Severity levels for error classification
type Severity string

const (
	// SeverityLow represents minor issues with degraded functionality
	SeverityLow Severity = "LOW"
	// SeverityMedium represents significant issues with some functionality lost
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh represents major issues with primary functionality affected
	SeverityHigh Severity = "HIGH"
	// SeverityCritical represents system-wide issues with service unavailable
	SeverityCritical Severity = "CRITICAL"
)

// ServiceError represents a structured error with context
type ServiceError struct {
	Code      ErrorCode      `json:"code"`
	Category  ErrorCategory  `json:"category"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Cause     error          `json:"-"` // Original error, not serialized
	Timestamp time.Time      `json:"timestamp"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with wrapped errors
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error can be retried
func (e *ServiceError) IsRetryable() bool {
	return e.Category == CategoryRetryableError ||
		e.Category == CategoryTimeoutError ||
		(e.Category == CategoryExternalError && e.Severity != SeverityCritical)
}

// IsClientError returns true if the error is caused by the client
func (e *ServiceError) IsClientError() bool {
	return e.Category == CategoryClientError
}

// HTTPStatusCode returns the appropriate HTTP status code for the error
func (e *ServiceError) HTTPStatusCode() int {
	switch e.Code {
	case ErrCodeInvalidRequest, ErrCodeValidationFailed, ErrCodeInvalidMetric:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeServiceUnavailable, ErrCodeQueueFull:
		return http.StatusServiceUnavailable
	case ErrCodeInternalError, ErrCodeDatabaseError, ErrCodeEvaluationFailed, ErrCodeUnknownRuleType:
		return http.StatusInternalServerError
	case ErrCodeNotificationError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBuilder helps construct ServiceError instances
type ErrorBuilder struct {
	error *ServiceError
}

// NewError creates a new ErrorBuilder
func NewError(code ErrorCode) *ErrorBuilder {
	return &ErrorBuilder{
		error: &ServiceError{
			Code:      code,
			Timestamp: time.Now(),
			Context:   make(map[string]any),
		},
	}
}

// WithCategory sets the error category
func (b *ErrorBuilder) WithCategory(category ErrorCategory) *ErrorBuilder {
	b.error.Category = category
	return b
}

// WithSeverity sets the error severity
func (b *ErrorBuilder) WithSeverity(severity Severity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithMessage sets the error message
func (b *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	b.error.Message = message
	return b
}

// WithDetails sets additional error details
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithCause sets the underlying cause
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// WithContext adds context information
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	if b.error.Context == nil {
		b.error.Context = make(map[string]any)
	}
	b.error.Context[key] = value
	return b
}

// Build returns the constructed ServiceError
func (b *ErrorBuilder) Build() *ServiceError {
	// Set default category based on code if not set
	if b.error.Category == "" {
		b.error.Category = getDefaultCategory(b.error.Code)
	}

	// Set default severity if not set
	if b.error.Severity == "" {
		b.error.Severity = getDefaultSeverity(b.error.Code)
	}

	return b.error
}

// NotFound builds the standard not-found error for a resource
func NotFound(resource string) *ServiceError {
	return NewError(ErrCodeNotFound).
		WithMessage(fmt.Sprintf("%s not found", resource)).
		Build()
}

// ErrorResponse represents the JSON response format for API errors
type ErrorResponse struct {
	Error     ErrorCode      `json:"error"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToErrorResponse converts ServiceError to ErrorResponse for API responses
func (e *ServiceError) ToErrorResponse() *ErrorResponse {
	return &ErrorResponse{
		Error:     e.Code,
		Message:   e.Message,
		Details:   e.Details,
		Context:   e.Context,
		Timestamp: e.Timestamp,
	}
}

// MarshalJSON implements json.Marshaler for structured logging
func (e *ServiceError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToErrorResponse())
}

// getDefaultCategory returns default category for error code
func getDefaultCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeNotFound, ErrCodeValidationFailed, ErrCodeInvalidMetric:
		return CategoryClientError
	case ErrCodeTimeout:
		return CategoryTimeoutError
	case ErrCodeNotificationError:
		return CategoryExternalError
	case ErrCodeServiceUnavailable, ErrCodeQueueFull:
		return CategoryRetryableError
	default:
		return CategoryServerError
	}
}

// getDefaultSeverity returns default severity for error code
func getDefaultSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeNotFound, ErrCodeInvalidMetric:
		return SeverityLow
	case ErrCodeValidationFailed, ErrCodeTimeout, ErrCodeUnknownRuleType, ErrCodeNotificationError:
		return SeverityMedium
	case ErrCodeServiceUnavailable, ErrCodeQueueFull, ErrCodeEvaluationFailed:
		return SeverityHigh
	case ErrCodeInternalError, ErrCodeDatabaseError:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}
