package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"strategy-backend/internal/domain"
)

func testEntry(id, userID, name string) (*domain.StrategyOverview, *domain.StrategyConfiguration) {
	overview := &domain.StrategyOverview{
		ID:              id,
		UserID:          userID,
		Name:            name,
		CreatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ConfigurationID: id + "-cfg",
	}
	config := &domain.StrategyConfiguration{
		ID:             id + "-cfg",
		UserID:         userID,
		MaxDailyTrades: domain.MaxDailyTradesRule{IsActive: true, Limit: 3},
		RiskReward:     domain.RiskRewardRule{IsActive: true, Ratio: "1:3"},
	}
	return overview, config
}

func TestStrategyCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewStrategyCache(nil)

	overview, config := testEntry("s1", "user-1", "Strategy")
	c.Set(ctx, "user-1", "s1", overview, config)

	entry, ok := c.Get(ctx, "user-1", "s1")
	require.True(t, ok)
	require.Equal(t, "Strategy", entry.Overview.Name)
	require.Equal(t, 3, entry.Configuration.MaxDailyTrades.Limit)
	require.Equal(t, 1, c.Size("user-1"))

	_, ok = c.Get(ctx, "user-1", "missing")
	require.False(t, ok)
	_, ok = c.Get(ctx, "user-2", "s1")
	require.False(t, ok)
}

func TestStrategyCacheHydratesFromMirror(t *testing.T) {
	ctx := context.Background()
	mirror := NewMemoryStore()

	first := NewStrategyCache(mirror)
	overview, config := testEntry("s1", "user-1", "Strategy")
	first.Set(ctx, "user-1", "s1", overview, config)

	// A fresh cache over the same mirror simulates a process restart.
	second := NewStrategyCache(mirror)
	require.Equal(t, 0, second.Size("user-1"))

	entry, ok := second.Get(ctx, "user-1", "s1")
	require.True(t, ok)
	require.Equal(t, "Strategy", entry.Overview.Name)
	require.Equal(t, "1:3", entry.Configuration.RiskReward.Ratio)
	require.Equal(t, 1, second.Size("user-1"))
}

func TestStrategyCacheClearEmptiesMirror(t *testing.T) {
	ctx := context.Background()
	mirror := NewMemoryStore()

	c := NewStrategyCache(mirror)
	overview, config := testEntry("s1", "user-1", "Strategy")
	c.Set(ctx, "user-1", "s1", overview, config)

	c.Clear(ctx, "user-1")
	require.Equal(t, 0, c.Size("user-1"))

	// Nothing to hydrate after a clear.
	fresh := NewStrategyCache(mirror)
	_, ok := fresh.Get(ctx, "user-1", "s1")
	require.False(t, ok)
}

// failingStore rejects every write.
type failingStore struct {
	deletes int
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("quota exceeded")
}

func (s *failingStore) Delete(ctx context.Context, key string) error {
	s.deletes++
	return nil
}

func TestStrategyCacheDropsMirrorOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	mirror := &failingStore{}

	c := NewStrategyCache(mirror)
	overview, config := testEntry("s1", "user-1", "Strategy")
	c.Set(ctx, "user-1", "s1", overview, config)

	// The failed write clears the persisted copy rather than leaving a
	// partial table behind.
	require.Equal(t, 1, mirror.deletes)

	// Memory still serves the entry for the rest of the session.
	entry, ok := c.Get(ctx, "user-1", "s1")
	require.True(t, ok)
	require.Equal(t, "Strategy", entry.Overview.Name)

	// Further writes stay memory-only: no repeated delete churn.
	c.Set(ctx, "user-1", "s2", overview, config)
	require.Equal(t, 1, mirror.deletes)
}
