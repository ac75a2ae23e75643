package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/rs/zerolog"
)

const (
	defaultMaxAttempts = 3
	retryBaseDelay     = 10 * time.Millisecond
)

// withRetry re-runs fn while it fails with a retryable store conflict or a
// transient outage. fn must be a read or a whole transaction so every attempt
// re-reads and re-validates. A failed commit is never retried. It returns the
// number of attempts made.
func withRetry(ctx context.Context, maxAttempts int, log zerolog.Logger, fn func() error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return attempt, nil
		}
		if !isTransient(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			break
		}

		log.Debug().Err(err).Int("attempt", attempt).Msg("retrying store call")
		timer := time.NewTimer(time.Duration(attempt) * retryBaseDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return maxAttempts, err
}

func isTransient(err error) bool {
	if errors.Is(err, repository.ErrCommitFailed) {
		return false
	}
	return errors.Is(err, repository.ErrRetryable) || errors.Is(err, repository.ErrUnavailable)
}
