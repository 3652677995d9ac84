package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacerAllowsBurstThenThrottles(t *testing.T) {
	p := NewPacer(2, 200*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	require.Less(t, time.Since(start), 50*time.Millisecond, "burst should not block")

	require.NoError(t, p.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "third acquisition should wait for a refill")
}

func TestPacerWaitHonorsContext(t *testing.T) {
	p := NewPacer(1, time.Minute)
	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, p.Wait(cancelled))
}

func TestRetryTransientEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := RetryTransient(context.Background(), 5, nil, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryTransientStopsOnPermanent(t *testing.T) {
	permanent := errors.New("throttled")
	attempts := 0
	err := RetryTransient(context.Background(), 5, func(e error) bool {
		return errors.Is(e, permanent)
	}, func() error {
		attempts++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, attempts)
}
