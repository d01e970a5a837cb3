package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a classified export, submit or storage failure.
type ErrorCode string

const (
	ErrTimeout           ErrorCode = "timeout"
	ErrContextCancelled  ErrorCode = "context_cancelled"
	ErrRenderUnavailable ErrorCode = "render_unavailable"
	ErrRenderRejected    ErrorCode = "render_rejected"
	ErrUnauthenticated   ErrorCode = "unauthenticated"
	ErrStorage           ErrorCode = "storage_error"
	ErrParseError        ErrorCode = "parse_error"
	ErrExportFailed      ErrorCode = "export_failed"
)

// ExportError is a structured error for failures outside the pure core:
// serializing, submitting to the render service, and saving projects.
type ExportError struct {
	Code    ErrorCode
	Stage   string
	Message string
	Cause   error
}

func (e *ExportError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// ClassifyError inspects an error and returns an *ExportError with the appropriate code.
// Unknown errors are classified as ErrExportFailed.
func ClassifyError(err error, stage string) *ExportError {
	if err == nil {
		return nil
	}

	ee := &ExportError{
		Stage: stage,
		Cause: err,
	}

	var existing *ExportError
	if errors.As(err, &existing) {
		ee.Code = existing.Code
		ee.Message = existing.Message
		return ee
	}

	if errors.Is(err, context.DeadlineExceeded) {
		ee.Code = ErrTimeout
		ee.Message = "operation timed out"
		return ee
	}

	if errors.Is(err, context.Canceled) {
		ee.Code = ErrContextCancelled
		ee.Message = "operation cancelled"
		return ee
	}

	if errors.Is(err, ErrMalformedTranscript) || errors.Is(err, ErrValidation) {
		ee.Code = ErrParseError
		ee.Message = err.Error()
		return ee
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") {
		ee.Code = ErrUnauthenticated
		ee.Message = msg
		return ee
	}

	if strings.Contains(lower, "invalidargument") || strings.Contains(lower, "invalid argument") || strings.Contains(lower, "400") || strings.Contains(lower, "422") {
		ee.Code = ErrRenderRejected
		ee.Message = msg
		return ee
	}

	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "unavailable") || strings.Contains(lower, "503") || strings.Contains(lower, "no such host") {
		ee.Code = ErrRenderUnavailable
		ee.Message = msg
		return ee
	}

	if strings.Contains(lower, "sqlstate") || strings.Contains(lower, "database") || strings.Contains(lower, "pool") {
		ee.Code = ErrStorage
		ee.Message = msg
		return ee
	}

	ee.Code = ErrExportFailed
	ee.Message = msg
	return ee
}

// IsTimeout returns true if the error is a classified timeout error.
func IsTimeout(err error) bool {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Code == ErrTimeout
	}
	return false
}

// IsErrorRetryable returns true if the error is likely transient and worth retrying.
func IsErrorRetryable(err error) bool {
	var ee *ExportError
	if errors.As(err, &ee) {
		return IsRetryable(ee.Code)
	}
	return false
}
