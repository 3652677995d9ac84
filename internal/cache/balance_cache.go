package cache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBalanceStaleAfter is how long a cached balance stays authoritative
// before a consumer should fire a background refresh.
const DefaultBalanceStaleAfter = 5 * time.Minute

type balanceEntry struct {
	value     decimal.Decimal
	fetchedAt time.Time
}

// BalanceCache holds the most recently known balance per trading account so
// risk-percentage calculations can render immediately. Values past the
// staleness threshold are still returned (stale-while-revalidate); the
// caller is responsible for refreshing them; the cache performs no I/O.
type BalanceCache struct {
	mu         sync.RWMutex
	entries    map[string]balanceEntry
	staleAfter time.Duration
	now        func() time.Time
}

// NewBalanceCache creates a cache with the given staleness threshold;
// staleAfter <= 0 selects the default.
func NewBalanceCache(staleAfter time.Duration) *BalanceCache {
	if staleAfter <= 0 {
		staleAfter = DefaultBalanceStaleAfter
	}
	return &BalanceCache{
		entries:    make(map[string]balanceEntry),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SetClock overrides the clock, for tests.
func (c *BalanceCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Balance returns the last known balance, or zero for an unknown account.
func (c *BalanceCache) Balance(accountID string) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[accountID]; ok {
		return e.value
	}
	return decimal.Zero
}

// SetBalance overwrites the balance and stamps the fetch time.
func (c *BalanceCache) SetBalance(accountID string, value decimal.Decimal) {
	c.mu.Lock()
	c.entries[accountID] = balanceEntry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
}

// SetBalanceAt seeds a balance with an explicit fetch stamp, used when
// hydrating from a persisted snapshot whose age must be preserved.
func (c *BalanceCache) SetBalanceAt(accountID string, value decimal.Decimal, fetchedAt time.Time) {
	c.mu.Lock()
	c.entries[accountID] = balanceEntry{value: value, fetchedAt: fetchedAt}
	c.mu.Unlock()
}

// NeedsUpdate reports whether the cached balance is past the staleness
// threshold. Unknown accounts always need an update.
func (c *BalanceCache) NeedsUpdate(accountID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[accountID]
	if !ok {
		return true
	}
	return c.now().Sub(e.fetchedAt) >= c.staleAfter
}
