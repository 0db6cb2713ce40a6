package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "error without cause",
			err:      &AppError{Code: ErrCodeValidationFailed, Message: "content is required"},
			expected: "VALIDATION_FAILED: content is required",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeStoreUnavailable,
				Message: "store insert failed",
				Cause:   errors.New("database is locked"),
			},
			expected: "STORE_UNAVAILABLE: store insert failed: database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternalError, "something went wrong")

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeValidationFailed, "validation failed")

	result := err.WithContext("field", "conversationId").WithContext("value", "")

	assert.Same(t, err, result)
	assert.Len(t, err.Context, 2)
	assert.Equal(t, "conversationId", err.Context["field"])
}

func TestWrapRetryable(t *testing.T) {
	err := WrapRetryable(errors.New("timeout"), ErrCodeStoreUnavailable, "ping failed")
	assert.True(t, err.Retryable)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGetCode_FollowsWrapChain(t *testing.T) {
	inner := NewNotFoundError("message", "wamid.1")
	wrapped := fmt.Errorf("update status: %w", inner)

	assert.Equal(t, ErrCodeNotFound, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeNotFound))
	assert.False(t, HasCode(nil, ErrCodeNotFound))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
}

func TestGetUserMessage(t *testing.T) {
	assert.Equal(t, "custom", GetUserMessage(New(ErrCodeInternalError, "x").WithUserMessage("custom")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(New(ErrCodeInternalError, "x")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(errors.New("plain")))
}

func TestAs(t *testing.T) {
	appErr, ok := As(fmt.Errorf("outer: %w", New(ErrCodeRateLimit, "slow down")))
	require.True(t, ok)
	assert.Equal(t, ErrCodeRateLimit, appErr.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
