package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"strategy-backend/internal/cache"
	"strategy-backend/internal/domain"
	"strategy-backend/internal/repository"
)

type countingProvider struct {
	value decimal.Decimal
	calls atomic.Int32
}

func (p *countingProvider) FetchBalance(ctx context.Context, account *domain.TradingAccount) (decimal.Decimal, error) {
	p.calls.Add(1)
	return p.value, nil
}

func newBalanceFixture(t *testing.T) (*BalanceService, *countingProvider, *cache.BalanceCache) {
	t.Helper()

	accounts := repository.NewInMemoryAccountRepository()
	require.NoError(t, accounts.Create(context.Background(), &domain.TradingAccount{
		ID:             "acct-1",
		UserID:         testUser,
		InitialBalance: decimal.NewFromInt(10000),
	}))

	provider := &countingProvider{value: decimal.NewFromInt(10250)}
	balanceCache := cache.NewBalanceCache(cache.DefaultBalanceStaleAfter)
	svc := NewBalanceService(accounts, provider, repository.NewInMemoryBalanceSnapshotRepository(), balanceCache)
	return svc, provider, balanceCache
}

func TestBalanceColdReadReturnsZeroAndRefreshes(t *testing.T) {
	svc, _, _ := newBalanceFixture(t)
	ctx := context.Background()

	result, err := svc.Balance(ctx, testUser, "acct-1")
	require.NoError(t, err)
	require.True(t, result.Stale)
	require.True(t, result.Balance.IsZero(), "unknown balance reads as zero, never an error")

	require.Eventually(t, func() bool {
		r, err := svc.Balance(ctx, testUser, "acct-1")
		return err == nil && !r.Stale
	}, 2*time.Second, 10*time.Millisecond)

	result, err = svc.Balance(ctx, testUser, "acct-1")
	require.NoError(t, err)
	require.True(t, result.Balance.Equal(decimal.NewFromInt(10250)))
}

func TestBalanceFreshReadDoesNotRefetch(t *testing.T) {
	svc, provider, balanceCache := newBalanceFixture(t)
	ctx := context.Background()

	balanceCache.SetBalance("acct-1", decimal.NewFromInt(9000))

	for i := 0; i < 3; i++ {
		result, err := svc.Balance(ctx, testUser, "acct-1")
		require.NoError(t, err)
		require.False(t, result.Stale)
		require.True(t, result.Balance.Equal(decimal.NewFromInt(9000)))
	}
	require.Equal(t, int32(0), provider.calls.Load())
}

func TestBalanceStaleReadServesOldValueWhileRefreshing(t *testing.T) {
	svc, _, balanceCache := newBalanceFixture(t)
	ctx := context.Background()

	now := time.Now()
	balanceCache.SetClock(func() time.Time { return now })
	balanceCache.SetBalance("acct-1", decimal.NewFromInt(9000))
	balanceCache.SetClock(func() time.Time { return now.Add(cache.DefaultBalanceStaleAfter + time.Second) })

	result, err := svc.Balance(ctx, testUser, "acct-1")
	require.NoError(t, err)
	require.True(t, result.Stale)
	require.True(t, result.Balance.Equal(decimal.NewFromInt(9000)), "stale value served immediately")
}

func TestBalanceHydratesFromSnapshot(t *testing.T) {
	accounts := repository.NewInMemoryAccountRepository()
	require.NoError(t, accounts.Create(context.Background(), &domain.TradingAccount{
		ID: "acct-1", UserID: testUser,
	}))
	snapshots := repository.NewInMemoryBalanceSnapshotRepository()
	require.NoError(t, snapshots.Save(context.Background(), "acct-1", decimal.NewFromInt(8800), time.Now().Add(-time.Hour)))

	provider := &countingProvider{value: decimal.NewFromInt(9100)}
	svc := NewBalanceService(accounts, provider, snapshots, cache.NewBalanceCache(cache.DefaultBalanceStaleAfter))

	result, err := svc.Balance(context.Background(), testUser, "acct-1")
	require.NoError(t, err)
	require.True(t, result.Balance.Equal(decimal.NewFromInt(8800)), "persisted snapshot beats zero")
	require.True(t, result.Stale, "snapshot keeps its original fetch stamp")
}

func TestBalanceRejectsForeignAccount(t *testing.T) {
	svc, _, _ := newBalanceFixture(t)

	_, err := svc.Balance(context.Background(), "intruder", "acct-1")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMaxRiskAmount(t *testing.T) {
	initial := decimal.NewFromInt(10000)
	live := decimal.NewFromInt(12000)

	t.Run("inactive rule", func(t *testing.T) {
		amount := MaxRiskAmount(domain.MaxRiskPerTradeRule{}, initial, live)
		require.True(t, amount.IsZero())
	})

	t.Run("fixed amount", func(t *testing.T) {
		rule := domain.MaxRiskPerTradeRule{IsActive: true, Mode: domain.RiskModeFixed, FixedAmount: 150}
		amount := MaxRiskAmount(rule, initial, live)
		require.True(t, amount.Equal(decimal.NewFromInt(150)))
	})

	t.Run("percent of initial balance", func(t *testing.T) {
		rule := domain.MaxRiskPerTradeRule{
			IsActive: true, Mode: domain.RiskModePercent,
			Percent: 2, PercentBasis: domain.RiskBasisInitialBalance,
		}
		amount := MaxRiskAmount(rule, initial, live)
		require.True(t, amount.Equal(decimal.NewFromInt(200)))
	})

	t.Run("percent of live balance", func(t *testing.T) {
		rule := domain.MaxRiskPerTradeRule{
			IsActive: true, Mode: domain.RiskModePercent,
			Percent: 2, PercentBasis: domain.RiskBasisLiveBalance,
		}
		amount := MaxRiskAmount(rule, initial, live)
		require.True(t, amount.Equal(decimal.NewFromInt(240)))
	})
}
