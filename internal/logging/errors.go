package logging

import (
	"fmt"
	"log/slog"
)

type ErrorCode string

// Error taxonomy per the job-lifecycle error mapping: each code maps to
// exactly one admission-time HTTP status or one terminal job status.
const (
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeQueueFull       ErrorCode = "QUEUE_FULL"
	ErrCodeHostUnreachable ErrorCode = "HOST_UNREACHABLE"
	ErrCodeHostProtocol    ErrorCode = "HOST_PROTOCOL_ERROR"
	ErrCodeIntegrity       ErrorCode = "INTEGRITY_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeRateLimit       ErrorCode = "RATE_LIMIT_EXCEEDED"
)

type ArchiverError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Operation string                 `json:"operation,omitempty"`
	JobID     string                 `json:"job_id,omitempty"`
	Filename  string                 `json:"filename,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Severity  string                 `json:"severity"`
}

// NewError creates a new ArchiverError with default severity "error"
func NewError(code ErrorCode, message string) *ArchiverError {
	return &ArchiverError{
		Code:     code,
		Message:  message,
		Severity: "error",
		Context:  make(map[string]interface{}),
	}
}

// NewWarning creates an ArchiverError with severity "warning"
func NewWarning(code ErrorCode, message string) *ArchiverError {
	return &ArchiverError{
		Code:     code,
		Message:  message,
		Severity: "warning",
		Context:  make(map[string]interface{}),
	}
}

func (e *ArchiverError) WithOperation(op string) *ArchiverError {
	e.Operation = op
	return e
}

func (e *ArchiverError) WithJob(jobID string) *ArchiverError {
	e.JobID = jobID
	return e
}

func (e *ArchiverError) WithFile(filename string) *ArchiverError {
	e.Filename = filename
	return e
}

func (e *ArchiverError) WithCause(err error) *ArchiverError {
	e.Cause = err
	return e
}

func (e *ArchiverError) WithContext(key string, value interface{}) *ArchiverError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *ArchiverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ArchiverError) Unwrap() error {
	return e.Cause
}

// LogValue implements slog.LogValuer for structured logging
func (e *ArchiverError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("error_code", string(e.Code)),
		slog.String("message", e.Message),
		slog.String("severity", e.Severity),
	}

	if e.Operation != "" {
		attrs = append(attrs, slog.String("operation", e.Operation))
	}
	if e.JobID != "" {
		attrs = append(attrs, slog.String("job_id", e.JobID))
	}
	if e.Filename != "" {
		attrs = append(attrs, slog.String("filename", e.Filename))
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}

	if len(e.Context) > 0 {
		contextAttrs := make([]any, 0, len(e.Context)*2)
		for k, v := range e.Context {
			contextAttrs = append(contextAttrs, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("context", contextAttrs...))
	}

	return slog.GroupValue(attrs...)
}

// IsRetryable returns true if the error class is one the caller may retry
// (timeout, rate limit, host unreachable). Neither the backup poll loop nor
// the circuit breaker consults it; the breaker counts every error alike.
func (e *ArchiverError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeRateLimit, ErrCodeHostUnreachable:
		return true
	default:
		return false
	}
}

// Common error constructors, one per taxonomy entry in SPEC_FULL §7.

func ErrValidationField(field, message string) *ArchiverError {
	return NewError(ErrCodeValidation, message).
		WithContext("field", field).
		WithOperation("validation")
}

func ErrQueueFull(queueSize int) *ArchiverError {
	return NewError(ErrCodeQueueFull, "maximum number of queued jobs exceeded").
		WithContext("queue_size", queueSize).
		WithOperation("admission")
}

func ErrHostUnreachable(message string, cause error) *ArchiverError {
	return NewError(ErrCodeHostUnreachable, message).
		WithCause(cause).
		WithOperation("host_call")
}

func ErrHostProtocol(message string, cause error) *ArchiverError {
	return NewError(ErrCodeHostProtocol, message).
		WithCause(cause).
		WithOperation("host_call")
}

func ErrIntegrity(filename, message string) *ArchiverError {
	return NewError(ErrCodeIntegrity, message).
		WithFile(filename).
		WithOperation("integrity_check")
}

func ErrTimeout(operation string, timeout interface{}) *ArchiverError {
	return NewError(ErrCodeTimeout, fmt.Sprintf("operation %s timed out", operation)).
		WithOperation(operation).
		WithContext("timeout", timeout)
}

func ErrInternal(message string, cause error) *ArchiverError {
	return NewError(ErrCodeInternal, message).
		WithCause(cause).
		WithOperation("internal")
}

func ErrNotFound(resource string) *ArchiverError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource)
}

func ErrRateLimit(limit int, window string) *ArchiverError {
	return NewError(ErrCodeRateLimit, "rate limit exceeded").
		WithContext("limit", limit).
		WithContext("window", window)
}
