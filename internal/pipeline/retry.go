package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/HaHongDo/vbpl-web-crawl/internal/fetch"
)

// IsRetryable checks if an error is worth retrying: only transport failures
// are, and never a cancelled context.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fetchErr *fetch.Error
	return errors.As(err, &fetchErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// retry calls fn up to MaxRetries times while it fails with a retryable
// error.
func retry(ctx context.Context, backoff func(int) time.Duration, fn func() error) error {
	var err error
	for attempt := range MaxRetries {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == MaxRetries-1 {
			break
		}
		t := time.NewTimer(backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
