package retryx

import (
	"context"
	"time"

	"github.com/fintrack-app/fintrack-go/internal/common"
	"github.com/fintrack-app/fintrack-go/internal/logging"
)

// Policy controls how a remote call is retried. Retryable receives the raw
// error of a failed attempt and decides eligibility; attempts are capped at
// 1 + MaxRetries.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Retryable  func(error) bool
}

// DefaultPolicy is the policy for data calls: retry network failures and
// transient store codes.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Retryable:  common.Retryable,
	}
}

// AuthPolicy is the stricter policy for authentication calls: fewer attempts,
// transport failures only.
func AuthPolicy() Policy {
	return Policy{
		MaxRetries: 1,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Retryable:  common.RetryableAuth,
	}
}

// Do executes fn, retrying per p. Every failed attempt is logged with its
// attempt number; exhausting retries (or hitting a non-retryable failure)
// returns the last error, classified.
func Do[T any](ctx context.Context, log logging.Logger, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		classified := common.Classify(err)
		if attempt >= p.MaxRetries || !p.Retryable(err) {
			log.Error(ctx, "remote call failed",
				"op", op, "attempts", attempt+1, "kind", classified.Kind, "error", err)
			return zero, classified
		}

		d := Delay(attempt, p.BaseDelay, p.MaxDelay)
		log.Warn(ctx, "remote call failed, will retry",
			"op", op, "attempt", attempt+1, "delay", d, "kind", classified.Kind, "error", err)

		select {
		case <-time.After(d):
		case <-ctx.Done():
			return zero, common.Classify(ctx.Err())
		}
	}
}

// Run is Do for calls without a result.
func Run(ctx context.Context, log logging.Logger, p Policy, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, log, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
