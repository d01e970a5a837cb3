package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeRegistry_Completeness(t *testing.T) {
	allCodes := []ErrorCode{
		ErrTimeout,
		ErrContextCancelled,
		ErrRenderUnavailable,
		ErrRenderRejected,
		ErrUnauthenticated,
		ErrStorage,
		ErrParseError,
		ErrExportFailed,
	}

	for _, code := range allCodes {
		t.Run(string(code), func(t *testing.T) {
			info, ok := ErrorCodeRegistry[code]
			assert.True(t, ok, "ErrorCode %s should be in registry", code)
			assert.Equal(t, code, info.Code, "Registry entry should have matching code")
			assert.NotEmpty(t, info.Description)
			assert.NotEmpty(t, info.SuggestedAction)
		})
	}
}

func TestIsRetryable_ErrorCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected bool
	}{
		{ErrTimeout, true},
		{ErrRenderUnavailable, true},
		{ErrStorage, true},
		{ErrContextCancelled, false},
		{ErrRenderRejected, false},
		{ErrUnauthenticated, false},
		{ErrParseError, false},
		{ErrExportFailed, false},
		{ErrorCode("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.code))
		})
	}
}

func TestGetDescriptionAndAction_Unknown(t *testing.T) {
	assert.Equal(t, "Unknown error", GetDescription("nope"))
	assert.Contains(t, GetSuggestedAction("nope"), "--debug")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"wrapped deadline", fmt.Errorf("submit: %w", context.DeadlineExceeded), ErrTimeout},
		{"cancelled", context.Canceled, ErrContextCancelled},
		{"malformed transcript", fmt.Errorf("load: %w", ErrMalformedTranscript), ErrParseError},
		{"grpc unavailable", errors.New("rpc error: code = Unavailable desc = connection refused"), ErrRenderUnavailable},
		{"http 503", errors.New("render service returned 503"), ErrRenderUnavailable},
		{"unauthenticated", errors.New("rpc error: code = Unauthenticated"), ErrUnauthenticated},
		{"rejected", errors.New("rpc error: code = InvalidArgument desc = bad layer"), ErrRenderRejected},
		{"storage", errors.New("ERROR: relation missing (SQLSTATE 42P01)"), ErrStorage},
		{"other", errors.New("boom"), ErrExportFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err, "submit")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
			assert.Equal(t, "submit", got.Stage)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil, "serialize"))
}

func TestClassifyError_PreservesExistingCode(t *testing.T) {
	inner := &ExportError{Code: ErrRenderRejected, Message: "bad document"}
	got := ClassifyError(fmt.Errorf("wrapped: %w", inner), "submit")
	assert.Equal(t, ErrRenderRejected, got.Code)
	assert.Equal(t, "bad document", got.Message)
}

func TestIsErrorRetryable(t *testing.T) {
	assert.True(t, IsErrorRetryable(ClassifyError(context.DeadlineExceeded, "submit")))
	assert.True(t, IsTimeout(ClassifyError(context.DeadlineExceeded, "submit")))
	assert.False(t, IsErrorRetryable(ClassifyError(errors.New("boom"), "submit")))
	assert.False(t, IsErrorRetryable(errors.New("plain")))
}

func TestExportError_Error(t *testing.T) {
	e := &ExportError{Code: ErrStorage, Stage: "save", Message: "pool closed"}
	assert.Equal(t, "storage_error: save: pool closed", e.Error())
	e.Stage = ""
	assert.Equal(t, "storage_error: pool closed", e.Error())
}
