package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBalanceCacheUnknownAccount(t *testing.T) {
	c := NewBalanceCache(0)
	require.True(t, decimal.Zero.Equal(c.Balance("acct-1")))
	require.True(t, c.NeedsUpdate("acct-1"))
}

func TestBalanceCacheStaleness(t *testing.T) {
	c := NewBalanceCache(5 * time.Minute)

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return current })

	c.SetBalance("acct-1", decimal.NewFromInt(10000))
	require.False(t, c.NeedsUpdate("acct-1"))
	require.True(t, decimal.NewFromInt(10000).Equal(c.Balance("acct-1")))

	// Just under the threshold: still fresh.
	current = current.Add(5*time.Minute - time.Second)
	require.False(t, c.NeedsUpdate("acct-1"))

	// Past the threshold: stale, but the value is still served.
	current = current.Add(2 * time.Second)
	require.True(t, c.NeedsUpdate("acct-1"))
	require.True(t, decimal.NewFromInt(10000).Equal(c.Balance("acct-1")))

	// A refresh restamps.
	c.SetBalance("acct-1", decimal.NewFromInt(10250))
	require.False(t, c.NeedsUpdate("acct-1"))
	require.True(t, decimal.NewFromInt(10250).Equal(c.Balance("acct-1")))
}
