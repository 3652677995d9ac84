package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"strategy-backend/internal/cache"
	"strategy-backend/internal/domain"
	"strategy-backend/internal/infrastructure/audit"
	"strategy-backend/internal/ratelimit"
	"strategy-backend/internal/repository"
)

const testUser = "user-1"

type serviceFixture struct {
	svc      *StrategyService
	store    *repository.InMemoryStrategyStore
	accounts *repository.InMemoryAccountRepository
	subs     *repository.InMemorySubscriptionRepository
}

// newServiceFixture wires the service against in-memory backends with one
// linked account and an active mid-tier subscription.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := repository.NewInMemoryStrategyStore()
	accounts := repository.NewInMemoryAccountRepository()
	plans := repository.NewInMemoryPlanRepository(repository.DefaultPlans()...)
	subs := repository.NewInMemorySubscriptionRepository()

	require.NoError(t, accounts.Create(context.Background(), &domain.TradingAccount{
		ID:             "acct-1",
		UserID:         testUser,
		Broker:         "demo",
		Label:          "Main",
		InitialBalance: decimal.NewFromInt(10000),
		CreatedAt:      time.Now(),
	}))
	subscribe(t, subs, testUser, "plan-trader", domain.SubscriptionActive)

	svc := NewStrategyService(
		store,
		accounts,
		cache.NewStrategyCache(nil),
		NewPlanGuard(plans, subs),
		audit.NewPublisher("", ""),
		nil,
	)
	svc.SetPacer(ratelimit.NewPacer(16, time.Millisecond))

	return &serviceFixture{svc: svc, store: store, accounts: accounts, subs: subs}
}

func sampleConfig() *domain.StrategyConfiguration {
	return &domain.StrategyConfiguration{
		MaxDailyTrades: domain.MaxDailyTradesRule{IsActive: true, Limit: 5},
		RiskReward:     domain.RiskRewardRule{IsActive: true, Ratio: "1:3"},
		MaxRiskPerTrade: domain.MaxRiskPerTradeRule{
			IsActive:     true,
			Mode:         domain.RiskModePercent,
			Percent:      2,
			PercentBasis: domain.RiskBasisInitialBalance,
		},
	}
}

func requireSingleActive(t *testing.T, view *StrategyView) {
	t.Helper()
	for _, item := range view.Others {
		require.False(t, item.Overview.Status, "strategy %q active outside the Active slot", item.Overview.Name)
	}
}

func TestCreateFirstStrategyIsActive(t *testing.T) {
	f := newServiceFixture(t)

	result, err := f.svc.Create(context.Background(), testUser, "Breakout", sampleConfig())
	require.NoError(t, err)
	require.True(t, result.Decision.CanCreate)
	require.Empty(t, result.Decision.Reason)
	require.True(t, result.FirstUse)
	require.NotEmpty(t, result.StrategyID)

	require.NotNil(t, result.View.Active)
	require.Equal(t, "Breakout", result.View.Active.Overview.Name)
	require.Len(t, result.View.Active.Overview.DateActive, 1)
	require.Empty(t, result.View.Others)
	require.Equal(t, 1, result.View.Count)
}

func TestCreateSecondStrategyInactiveWithClosedCycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)

	result, err := f.svc.Create(ctx, testUser, "Scalp", sampleConfig())
	require.NoError(t, err)
	require.False(t, result.FirstUse)

	stored, err := f.store.GetOverview(ctx, result.StrategyID)
	require.NoError(t, err)
	require.False(t, stored.Status)
	require.Empty(t, stored.DateActive)
	require.Len(t, stored.DateInactive, 1, "inactive creation stamps the closing side of the cycle")

	require.Equal(t, "Breakout", result.View.Active.Overview.Name)
	requireSingleActive(t, result.View)
}

func TestCreateWithoutAccountsDenied(t *testing.T) {
	f := newServiceFixture(t)
	require.NoError(t, f.accounts.Delete(context.Background(), "acct-1"))

	result, err := f.svc.Create(context.Background(), testUser, "Breakout", sampleConfig())
	require.NoError(t, err)
	require.NotNil(t, result.Decision)
	require.False(t, result.Decision.CanCreate)
	require.Empty(t, result.StrategyID)
}

func TestCreateAtPlanLimitDenied(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	subscribe(t, f.subs, testUser, "plan-starter", domain.SubscriptionActive)

	for _, name := range []string{"One", "Two"} {
		result, err := f.svc.Create(ctx, testUser, name, sampleConfig())
		require.NoError(t, err)
		require.True(t, result.Decision.CanCreate)
	}

	result, err := f.svc.Create(ctx, testUser, "Three", sampleConfig())
	require.NoError(t, err)
	require.False(t, result.Decision.CanCreate)
	require.Equal(t, "Starter", result.Decision.PlanName)
	require.True(t, result.Decision.ShowUpgrade)
	require.Empty(t, result.StrategyID)

	view, err := f.svc.LoadView(ctx, testUser, true)
	require.NoError(t, err)
	require.Equal(t, 2, view.Count, "denied create must not write")
}

func TestActivateSwitchesSingleActive(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, testUser, "Scalp", sampleConfig())
	require.NoError(t, err)

	view, err := f.svc.Activate(ctx, testUser, second.StrategyID)
	require.NoError(t, err)
	require.Equal(t, "Scalp", view.Active.Overview.Name)
	requireSingleActive(t, view)

	old, err := f.store.GetOverview(ctx, first.StrategyID)
	require.NoError(t, err)
	require.False(t, old.Status)
	require.Len(t, old.DateInactive, 1, "deactivation closes the previous cycle")

	target, err := f.store.GetOverview(ctx, second.StrategyID)
	require.NoError(t, err)
	require.Len(t, target.DateActive, 1)
}

func TestActivateAlreadyActiveIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)

	view, err := f.svc.Activate(ctx, testUser, first.StrategyID)
	require.NoError(t, err)
	require.Equal(t, first.StrategyID, view.Active.Overview.ID)

	stored, err := f.store.GetOverview(ctx, first.StrategyID)
	require.NoError(t, err)
	require.Len(t, stored.DateActive, 1, "no duplicate activation stamp")
}

func TestDeleteIsSoftAndClosesActiveCycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, testUser, "Scalp", sampleConfig())
	require.NoError(t, err)

	view, err := f.svc.Delete(ctx, testUser, first.StrategyID)
	require.NoError(t, err)
	require.Nil(t, view.Active)
	require.Equal(t, 1, view.Count)

	stored, err := f.store.GetOverview(ctx, first.StrategyID)
	require.NoError(t, err)
	require.True(t, stored.Deleted)
	require.NotNil(t, stored.DeletedAt)
	require.False(t, stored.Status)
	require.Len(t, stored.DateInactive, 1)

	_, err = f.svc.GetStrategy(ctx, testUser, first.StrategyID)
	require.ErrorIs(t, err, domain.ErrStrategyNotFound)
}

func TestCopyOfActiveCreatedInactiveWithStamp(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	source, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)

	result, err := f.svc.Copy(ctx, testUser, source.StrategyID)
	require.NoError(t, err)
	require.NotEmpty(t, result.StrategyID)

	copied, err := f.store.GetOverview(ctx, result.StrategyID)
	require.NoError(t, err)
	require.Equal(t, "Breakout copy", copied.Name)
	require.False(t, copied.Status)
	require.Len(t, copied.DateInactive, 1)

	// Original stays active and untouched.
	require.Equal(t, source.StrategyID, result.View.Active.Overview.ID)
	requireSingleActive(t, result.View)
}

func TestCopyNamesNeverCollide(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	source, err := f.svc.Create(ctx, testUser, "Strategy", sampleConfig())
	require.NoError(t, err)

	first, err := f.svc.Copy(ctx, testUser, source.StrategyID)
	require.NoError(t, err)
	second, err := f.svc.Copy(ctx, testUser, source.StrategyID)
	require.NoError(t, err)

	a, err := f.store.GetOverview(ctx, first.StrategyID)
	require.NoError(t, err)
	b, err := f.store.GetOverview(ctx, second.StrategyID)
	require.NoError(t, err)
	require.Equal(t, "Strategy copy", a.Name)
	require.Equal(t, "Strategy copy 1", b.Name)
}

func TestRenameDisambiguates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, testUser, "Scalp", sampleConfig())
	require.NoError(t, err)

	_, err = f.svc.Rename(ctx, testUser, second.StrategyID, "Breakout")
	require.NoError(t, err)

	stored, err := f.store.GetOverview(ctx, second.StrategyID)
	require.NoError(t, err)
	require.Equal(t, "Breakout copy", stored.Name)

	// Renaming to its own current name keeps it.
	_, err = f.svc.Rename(ctx, testUser, second.StrategyID, "Breakout copy")
	require.NoError(t, err)
	stored, err = f.store.GetOverview(ctx, second.StrategyID)
	require.NoError(t, err)
	require.Equal(t, "Breakout copy", stored.Name)
}

func TestLoadViewServesWarmCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)

	// Fail the store after the mutation's reload warmed the cache.
	f.svc.store = &failingListStore{}
	view, err := f.svc.LoadView(ctx, testUser, false)
	require.NoError(t, err)
	require.NotNil(t, view.Active)
	require.Equal(t, "Breakout", view.Active.Overview.Name)
}

func TestMutationsAreVisibleAfterReload(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)

	cfg := created.View.Active.Configuration
	update := *cfg
	update.MaxDailyTrades.Limit = 9

	view, err := f.svc.UpdateConfiguration(ctx, testUser, &update)
	require.NoError(t, err)
	require.Equal(t, 9, view.Active.Configuration.MaxDailyTrades.Limit)

	item, err := f.svc.GetStrategy(ctx, testUser, created.StrategyID)
	require.NoError(t, err)
	require.Equal(t, 9, item.Configuration.MaxDailyTrades.Limit)
}

func TestGetStrategyRejectsForeignOwner(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testUser, "Breakout", sampleConfig())
	require.NoError(t, err)

	_, err = f.svc.GetStrategy(ctx, "intruder", created.StrategyID)
	require.ErrorIs(t, err, domain.ErrStrategyNotFound)
}

// throttlingStore wraps the real store and throttles configured
// configuration ids, mimicking provider rate limiting.
type throttlingStore struct {
	domain.StrategyStore

	mu       sync.Mutex
	throttle map[string]bool
}

func (s *throttlingStore) GetConfiguration(ctx context.Context, id string) (*domain.StrategyConfiguration, error) {
	s.mu.Lock()
	blocked := s.throttle[id]
	s.mu.Unlock()
	if blocked {
		return nil, domain.ErrRateLimited
	}
	return s.StrategyStore.GetConfiguration(ctx, id)
}

func TestLoadViewOmitsThrottledStrategies(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	throttled := &throttlingStore{StrategyStore: f.store, throttle: make(map[string]bool)}
	f.svc.store = throttled

	ids := make([]string, 0, 3)
	for _, name := range []string{"One", "Two", "Three"} {
		result, err := f.svc.Create(ctx, testUser, name, sampleConfig())
		require.NoError(t, err)
		ids = append(ids, result.StrategyID)
	}

	victim, err := f.store.GetOverview(ctx, ids[1])
	require.NoError(t, err)
	throttled.mu.Lock()
	throttled.throttle[victim.ConfigurationID] = true
	throttled.mu.Unlock()

	view, err := f.svc.LoadView(ctx, testUser, true)
	require.NoError(t, err)
	require.True(t, view.RateLimited)
	require.Equal(t, 3, view.Count, "count reflects live overviews, not loaded items")

	loaded := len(view.Others)
	if view.Active != nil {
		loaded++
	}
	require.Equal(t, 2, loaded, "the throttled strategy is omitted, the rest render")
	for _, item := range view.Others {
		require.NotEqual(t, ids[1], item.Overview.ID)
	}
}

// failingListStore fails ListOverviews to exercise the degraded empty state.
type failingListStore struct {
	domain.StrategyStore
}

func (s *failingListStore) ListOverviews(ctx context.Context, userID string) ([]*domain.StrategyOverview, error) {
	return nil, domain.ErrRateLimited
}

func TestLoadViewDegradesWhenListingFails(t *testing.T) {
	f := newServiceFixture(t)
	f.svc.store = &failingListStore{StrategyStore: f.store}

	view, err := f.svc.LoadView(context.Background(), testUser, true)
	require.NoError(t, err)
	require.True(t, view.Degraded)
	require.True(t, view.RateLimited)
	require.Nil(t, view.Active)
	require.Empty(t, view.Others)
	require.Equal(t, 0, view.Count)
}
