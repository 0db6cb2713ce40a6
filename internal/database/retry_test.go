package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableDBError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("UNIQUE constraint failed: messages.external_id"), false},
		{errors.New("no such table: messages"), false},
		{context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableDBError(tt.err), "%v", tt.err)
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, "op", func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error returned unwrapped", func(t *testing.T) {
		permanent := errors.New("syntax error")
		calls := 0
		err := withRetry(ctx, "op", func() error {
			calls++
			return permanent
		})
		assert.Same(t, permanent, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, "op", func() error {
			calls++
			return errors.New("database is locked")
		})
		assert.ErrorContains(t, err, "op failed after 3 attempts")
		assert.Equal(t, 3, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := withRetry(cancelled, "op", func() error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
