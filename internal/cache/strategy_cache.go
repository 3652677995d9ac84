package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"strategy-backend/internal/domain"
)

// Entry is one cached strategy: the overview and its rule configuration.
type Entry struct {
	Overview      *domain.StrategyOverview      `json:"overview"`
	Configuration *domain.StrategyConfiguration `json:"configuration"`
}

// mirrorTTL bounds how long a mirrored table outlives its session.
const mirrorTTL = 12 * time.Hour

// StrategyCache is a per-user lookup table from strategy id to its full
// {overview, configuration} pair, optionally mirrored into a persistent
// Store so it survives a process restart.
//
// The cache is deliberately dumb: it has no staleness detection and no
// invalidation policy beyond a full clear. Freshness and the single-active
// invariant are enforced by the strategy service re-fetching and calling
// Set/Clear at the right moments.
type StrategyCache struct {
	mu       sync.RWMutex
	tables   map[string]map[string]Entry // userID -> strategyID -> entry
	mirror   Store                       // nil = memory-only
	disabled map[string]bool             // users whose mirror write failed this session
}

// NewStrategyCache creates a cache. mirror may be nil for memory-only use.
func NewStrategyCache(mirror Store) *StrategyCache {
	return &StrategyCache{
		tables:   make(map[string]map[string]Entry),
		mirror:   mirror,
		disabled: make(map[string]bool),
	}
}

func mirrorKey(userID string) string {
	return "strategies:" + userID
}

// Set upserts an entry and, when mirroring is enabled for this user,
// serializes the whole table to the persistent store. A mirror write failure
// drops the persisted copy entirely and falls back to memory-only for the
// remainder of the session, so a partially written table can never be
// hydrated later.
func (c *StrategyCache) Set(ctx context.Context, userID, strategyID string, overview *domain.StrategyOverview, config *domain.StrategyConfiguration) {
	c.mu.Lock()
	table, ok := c.tables[userID]
	if !ok {
		table = make(map[string]Entry)
		c.tables[userID] = table
	}
	table[strategyID] = Entry{Overview: overview, Configuration: config}
	snapshot := c.snapshotLocked(userID)
	useMirror := c.mirror != nil && !c.disabled[userID]
	c.mu.Unlock()

	if !useMirror {
		return
	}

	b, err := json.Marshal(snapshot)
	if err == nil {
		err = c.mirror.Set(ctx, mirrorKey(userID), b, mirrorTTL)
	}
	if err != nil {
		log.Printf("strategy cache: mirror write failed for user %s, dropping mirror: %v", userID, err)
		if delErr := c.mirror.Delete(ctx, mirrorKey(userID)); delErr != nil {
			log.Printf("strategy cache: mirror delete failed for user %s: %v", userID, delErr)
		}
		c.mu.Lock()
		c.disabled[userID] = true
		c.mu.Unlock()
	}
}

// Get returns the cached entry for a strategy. On a memory miss it attempts
// to hydrate the user's table from the persistent mirror before declaring a
// miss. Hydration is a secondary lookup path, not a freshness guarantee.
func (c *StrategyCache) Get(ctx context.Context, userID, strategyID string) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.tables[userID][strategyID]
	c.mu.RUnlock()
	if ok {
		return entry, true
	}

	if !c.hydrate(ctx, userID) {
		return Entry{}, false
	}

	c.mu.RLock()
	entry, ok = c.tables[userID][strategyID]
	c.mu.RUnlock()
	return entry, ok
}

// Entries returns a copy of the user's table.
func (c *StrategyCache) Entries(userID string) map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked(userID)
}

// Clear empties both memory and the persistent mirror for a user, so no
// stale entry can survive a reload driven by an external mutation. A cleared
// user gets mirroring back: the failure fallback is per session, and a clear
// starts a fresh one.
func (c *StrategyCache) Clear(ctx context.Context, userID string) {
	c.mu.Lock()
	delete(c.tables, userID)
	delete(c.disabled, userID)
	c.mu.Unlock()

	if c.mirror == nil {
		return
	}
	if err := c.mirror.Delete(ctx, mirrorKey(userID)); err != nil {
		log.Printf("strategy cache: mirror clear failed for user %s: %v", userID, err)
	}
}

// Size reports how many strategies are cached for a user. The strategy
// service uses it as a coarse warm-cache signal after navigation events.
func (c *StrategyCache) Size(userID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables[userID])
}

func (c *StrategyCache) snapshotLocked(userID string) map[string]Entry {
	table := c.tables[userID]
	out := make(map[string]Entry, len(table))
	for id, e := range table {
		out[id] = e
	}
	return out
}

// hydrate loads the user's mirrored table into memory. Returns false when
// there is nothing usable to hydrate.
func (c *StrategyCache) hydrate(ctx context.Context, userID string) bool {
	if c.mirror == nil {
		return false
	}
	c.mu.RLock()
	disabled := c.disabled[userID]
	c.mu.RUnlock()
	if disabled {
		return false
	}

	b, found, err := c.mirror.Get(ctx, mirrorKey(userID))
	if err != nil {
		log.Printf("strategy cache: mirror read failed for user %s: %v", userID, err)
		return false
	}
	if !found {
		return false
	}

	var table map[string]Entry
	if err := json.Unmarshal(b, &table); err != nil {
		// A corrupt mirror is treated like a failed write: drop it.
		log.Printf("strategy cache: corrupt mirror for user %s, dropping: %v", userID, err)
		_ = c.mirror.Delete(ctx, mirrorKey(userID))
		return false
	}

	c.mu.Lock()
	if _, ok := c.tables[userID]; !ok {
		c.tables[userID] = table
	}
	c.mu.Unlock()
	return true
}
