package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes of conflicts that succeed when the transaction is re-run
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

var retryableSQLStates = map[string]string{
	sqlStateSerializationFailure: "serialization_failure",
	sqlStateDeadlockDetected:     "deadlock",
	sqlStateLockNotAvailable:     "lock_timeout",
}

// IsRetryable reports whether err is a transient conflict between concurrent
// stock transactions. Business and structural errors are never retryable.
func IsRetryable(err error) bool {
	return RetryReason(err) != ""
}

// RetryReason names the transient conflict behind err, or "" when err is not
// retryable
func RetryReason(err error) string {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLStates[pgErr.Code]
	}
	return ""
}
