package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"strategy-backend/internal/domain"
	"strategy-backend/internal/repository"
)

func newTestGuard(t *testing.T) (*PlanGuard, *repository.InMemorySubscriptionRepository) {
	t.Helper()
	plans := repository.NewInMemoryPlanRepository(repository.DefaultPlans()...)
	subs := repository.NewInMemorySubscriptionRepository()
	return NewPlanGuard(plans, subs), subs
}

func subscribe(t *testing.T, subs *repository.InMemorySubscriptionRepository, userID, planID, status string) {
	t.Helper()
	now := time.Now()
	err := subs.Upsert(context.Background(), &domain.Subscription{
		ID:          "sub-" + userID,
		UserID:      userID,
		PlanID:      planID,
		Status:      status,
		PeriodStart: now.AddDate(0, -1, 0),
		PeriodEnd:   now.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
}

func TestCheckUserLimitationsNeverSubscribed(t *testing.T) {
	guard, _ := newTestGuard(t)

	lim, err := guard.CheckUserLimitations(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Equal(t, domain.LimitNeedsSubscription, lim.State)
	require.True(t, lim.NeedsSubscription)
	require.Equal(t, 0, lim.MaxStrategies)
}

func TestCheckUserLimitationsCancelled(t *testing.T) {
	guard, subs := newTestGuard(t)
	subscribe(t, subs, "user-1", "plan-trader", domain.SubscriptionCancelled)

	lim, err := guard.CheckUserLimitations(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.False(t, lim.NeedsSubscription)
	require.True(t, lim.IsCancelled)
	require.Equal(t, 0, lim.MaxStrategies)
}

func TestCheckUserLimitationsBannedBlocksRegardlessOfCounts(t *testing.T) {
	guard, subs := newTestGuard(t)
	subscribe(t, subs, "user-1", "plan-professional", domain.SubscriptionBanned)

	lim, err := guard.CheckUserLimitations(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Equal(t, domain.LimitBanned, lim.State)
	require.True(t, lim.IsBanned)
}

func TestCheckUserLimitationsActiveStates(t *testing.T) {
	guard, subs := newTestGuard(t)
	subscribe(t, subs, "user-1", "plan-starter", domain.SubscriptionActive)

	lim, err := guard.CheckUserLimitations(context.Background(), "user-1", 1)
	require.NoError(t, err)
	require.Equal(t, domain.LimitWithinLimits, lim.State)
	require.Equal(t, "Starter", lim.PlanName)
	require.Equal(t, 2, lim.MaxStrategies)

	lim, err = guard.CheckUserLimitations(context.Background(), "user-1", 2)
	require.NoError(t, err)
	require.Equal(t, domain.LimitAtLimit, lim.State)
}

func TestCanCreateStrategyAtLimitOffersUpgrade(t *testing.T) {
	guard, subs := newTestGuard(t)
	subscribe(t, subs, "user-1", "plan-starter", domain.SubscriptionActive)

	decision, err := guard.CanCreateStrategy(context.Background(), "user-1", 2)
	require.NoError(t, err)
	require.False(t, decision.CanCreate)
	require.True(t, decision.ShowUpgrade)
	require.Equal(t, "Starter", decision.PlanName)
	require.Contains(t, decision.Reason, "Starter")
}

func TestCanCreateStrategyTopTierAtLimitSuppressesUpgrade(t *testing.T) {
	guard, subs := newTestGuard(t)
	subscribe(t, subs, "user-1", "plan-professional", domain.SubscriptionActive)

	decision, err := guard.CanCreateStrategy(context.Background(), "user-1", 20)
	require.NoError(t, err)
	require.False(t, decision.CanCreate)
	require.False(t, decision.ShowUpgrade, "top tier has nowhere further to upgrade")
}

func TestCanCreateAccountWithinLimit(t *testing.T) {
	guard, subs := newTestGuard(t)
	subscribe(t, subs, "user-1", "plan-trader", domain.SubscriptionActive)

	decision, err := guard.CanCreateAccount(context.Background(), "user-1", 1)
	require.NoError(t, err)
	require.True(t, decision.CanCreate)

	decision, err = guard.CanCreateAccount(context.Background(), "user-1", 3)
	require.NoError(t, err)
	require.False(t, decision.CanCreate)
	require.True(t, decision.ShowUpgrade)
}

func TestValidateDowngradeComputesExcess(t *testing.T) {
	guard, _ := newTestGuard(t)

	check, err := guard.ValidateDowngrade(context.Background(), "Starter", 3, 6)
	require.NoError(t, err)
	require.False(t, check.Allowed)
	require.Equal(t, 2, check.ExcessAccounts)
	require.Equal(t, 4, check.ExcessStrategies)

	check, err = guard.ValidateDowngrade(context.Background(), "Starter", 1, 2)
	require.NoError(t, err)
	require.True(t, check.Allowed)
	require.Equal(t, 0, check.ExcessAccounts)
	require.Equal(t, 0, check.ExcessStrategies)
}
