package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/port"
)

// ErrLockAcquisitionFailed is returned when an operation kept losing the
// optimistic-lock race until its retry budget ran out.
var ErrLockAcquisitionFailed = errors.New("lock acquisition failed")

// RetryPolicy bounds how an operation reacts to version conflicts. Backoff
// grows by Multiplier between attempts when Multiplier > 1.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Multiplier  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     100 * time.Millisecond,
		Multiplier:  2,
	}
}

// withOptimisticRetry runs fn until it returns anything other than
// port.ErrVersionConflict. Each attempt re-executes fn from scratch, so fn
// must re-read current state every time. No lock is held while waiting
// between attempts.
func withOptimisticRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := policy.Backoff

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, port.ErrVersionConflict) {
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%w: gave up after %d attempts: %v", ErrLockAcquisitionFailed, attempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if policy.Multiplier > 1 {
			delay = time.Duration(float64(delay) * policy.Multiplier)
		}
	}
}
