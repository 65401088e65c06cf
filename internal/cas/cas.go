// Package cas retries compare-and-swap writes.
//
// Do knows nothing about documents. It calls write with a token; when the
// write is rejected as a conflict it fetches a fresh token, waits, and tries
// again until the attempt limit is reached.
package cas

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxAttempts is used when Policy.MaxAttempts is not positive.
const DefaultMaxAttempts = 3

// Policy controls retrying.
type Policy struct {
	// MaxAttempts bounds the number of write calls.
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// IsConflict classifies write errors. Only conflicts are retried.
	IsConflict func(err error) bool
}

// LinearBackoff waits step, 2*step, 3*step, ... between attempts.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// DefaultPolicy retries conflicts three times, waiting one more second
// after each attempt. The conflict classifier must still be set.
func DefaultPolicy(isConflict func(error) bool) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     LinearBackoff(time.Second),
		Sleep:       SleepContext,
		IsConflict:  isConflict,
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError is returned when every attempt ended in a conflict.
type ExhaustedError struct {
	// Subject names what was being written. It may be empty.
	Subject  string
	Attempts int
	// Err is the last conflict.
	Err error
}

func (e *ExhaustedError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("failed to save after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed to save %s after %d attempts: %v", e.Subject, e.Attempts, e.Err)
}

// Unwrap returns the last conflict.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls write with token. If write fails with a conflict, refetch is
// called for a fresh token and write is retried after a backoff. Errors that
// are not conflicts, refetch errors, and sleep errors are returned as is.
// The number of write calls made is always returned.
func Do(ctx context.Context, p Policy, token string, refetch func(ctx context.Context) (string, error), write func(ctx context.Context, token string) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; ; attempt++ {
		err := write(ctx, token)
		if err == nil {
			return attempt, nil
		}
		if p.IsConflict == nil || !p.IsConflict(err) {
			return attempt, err
		}
		if attempt >= maxAttempts {
			return attempt, &ExhaustedError{Attempts: attempt, Err: err}
		}
		if p.Backoff != nil {
			if err := sleep(ctx, p.Backoff(attempt)); err != nil {
				return attempt, err
			}
		}
		token, err = refetch(ctx)
		if err != nil {
			return attempt, fmt.Errorf("refetch token: %w", err)
		}
	}
}
