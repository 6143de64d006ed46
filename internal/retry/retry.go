// Package retry wraps fallible provider calls with quota-aware exponential
// backoff. Only quota errors are retried; anything else propagates on first
// occurrence.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"tradehub/services/pipeline/internal/provider"
)

// ErrExhausted wraps the last quota error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the quota budget of the Gemini free tier: three
// attempts starting at a minute, capped at five.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   60 * time.Second,
		MaxDelay:    5 * time.Minute,
		Multiplier:  2,
	}
}

// Delay computes the backoff before the next attempt. attempt is 1-based.
// A provider-supplied retry-after hint overrides the computed delay when it
// is larger; both are capped at MaxDelay.
func (p Policy) Delay(attempt int, hint time.Duration) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	if hint > d {
		d = hint
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a non-quota error, or exhausts
// p.MaxAttempts quota failures. Between attempts it sleeps the backoff delay,
// honouring ctx cancellation. The sleep suspends only the calling job.
func Do(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !provider.IsQuota(err) {
			return err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt, provider.RetryAfterHint(err))
		slog.WarnContext(ctx, "quota exhausted, backing off",
			"operation", name, "attempt", attempt, "max_attempts", p.MaxAttempts, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %w", ErrExhausted, name, p.MaxAttempts, lastErr)
}
