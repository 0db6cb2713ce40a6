package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/retry"
)

// storeBackoff retries transient store errors such as SQLite lock contention.
var storeBackoff = retry.BackoffConfig{
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     500 * time.Millisecond,
	Multiplier:   2.0,
	MaxAttempts:  constants.DefaultDatabaseRetries,
	Jitter:       true,
}

// withRetry runs operation, retrying transient store errors. Permanent errors
// are returned unchanged.
func withRetry(ctx context.Context, operationName string, operation func() error) error {
	backoff := retry.NewBackoff(storeBackoff)
	err := backoff.RetryWithPredicate(ctx, operation, isRetryableDBError)
	if err == nil || !isRetryableDBError(err) {
		return err
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, backoff.Attempts(), err)
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	for _, transient := range []string{
		"database is locked",
		"database table is locked",
		"disk I/O error",
		"connection refused",
		"connection reset",
		"no such host",
		"too many clients",
	} {
		if strings.Contains(errStr, transient) {
			return true
		}
	}

	return false
}
