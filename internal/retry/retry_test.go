package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tradehub/services/pipeline/internal/provider"
	"tradehub/services/pipeline/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesQuotaThenSucceeds(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(), "op", func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return &provider.QuotaError{Err: errors.New("429")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonQuotaErrorPropagatesImmediately(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(), "op", func(ctx context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.False(t, errors.Is(err, retry.ErrExhausted))
}

func TestDo_ExhaustsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(), "op", func(ctx context.Context) error {
		calls++
		return &provider.QuotaError{Err: errors.New("429")}
	})

	require.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 3, calls)
	assert.True(t, provider.IsQuota(err), "last quota error stays unwrappable")
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	p := retry.Policy{MaxAttempts: 3, BaseDelay: time.Minute, MaxDelay: time.Hour, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- retry.Do(ctx, p, "op", func(ctx context.Context) error {
			return &provider.QuotaError{}
		})
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   60 * time.Second,
		MaxDelay:    5 * time.Minute,
		Multiplier:  2,
	}

	tests := []struct {
		name    string
		attempt int
		hint    time.Duration
		want    time.Duration
	}{
		{"first attempt", 1, 0, 60 * time.Second},
		{"second attempt doubles", 2, 0, 120 * time.Second},
		{"capped at max", 4, 0, 5 * time.Minute},
		{"larger hint wins", 1, 90 * time.Second, 90 * time.Second},
		{"smaller hint ignored", 2, 30 * time.Second, 120 * time.Second},
		{"hint capped at max", 1, time.Hour, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Delay(tt.attempt, tt.hint))
		})
	}
}
