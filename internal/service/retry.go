package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultRetryAttempts = 4
	defaultRetryBackoff  = 25 * time.Millisecond
)

// serialization_failure and deadlock_detected: the transaction was aborted by
// the database and is safe to re-run with the same inputs.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// WithRetry runs fn, retrying transient serialization/deadlock aborts with
// exponential backoff. Exhaustion surfaces as models.ErrConflict wrapping the
// last failure; all other errors return immediately.
func WithRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || !isRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << attempt):
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", models.ErrConflict, attempts, err)
}
