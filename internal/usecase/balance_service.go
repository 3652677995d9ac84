package usecase

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"strategy-backend/internal/cache"
	"strategy-backend/internal/domain"
)

// BalanceResult is one balance read. Stale means the value is past the
// staleness threshold and a background refresh is already underway.
type BalanceResult struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	Stale     bool            `json:"stale"`
}

// BalanceService serves account balances stale-while-revalidate: the last
// known value is returned immediately, and a single background refresh per
// account is fired when the cached value has gone stale. The caller never
// blocks on the broker round trip.
type BalanceService struct {
	accounts  domain.AccountRepository
	provider  domain.BalanceProvider
	snapshots domain.BalanceSnapshotRepository
	cache     *cache.BalanceCache

	mu        sync.Mutex
	refreshing map[string]bool // accounts with a fetch in flight
}

func NewBalanceService(
	accounts domain.AccountRepository,
	provider domain.BalanceProvider,
	snapshots domain.BalanceSnapshotRepository,
	balanceCache *cache.BalanceCache,
) *BalanceService {
	return &BalanceService{
		accounts:   accounts,
		provider:   provider,
		snapshots:  snapshots,
		cache:      balanceCache,
		refreshing: make(map[string]bool),
	}
}

// Balance returns the last known balance for an account, zero if none is
// known yet. A stale or missing value triggers one background refresh.
func (s *BalanceService) Balance(ctx context.Context, userID, accountID string) (*BalanceResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, domain.ErrAccountNotFound
	}

	value := s.cache.Balance(accountID)
	stale := s.cache.NeedsUpdate(accountID)

	// Cold cache: a persisted snapshot is better than zero, but it keeps
	// its original fetch stamp so it still counts as stale.
	if stale && value.IsZero() && s.snapshots != nil {
		if snap, fetchedAt, snapErr := s.snapshots.Get(ctx, accountID); snapErr == nil {
			value = snap
			s.cache.SetBalanceAt(accountID, snap, fetchedAt)
			stale = s.cache.NeedsUpdate(accountID)
		} else if !errors.Is(snapErr, domain.ErrNoBalanceSnapshot) {
			log.Printf("balance: reading snapshot for account %s: %v", accountID, snapErr)
		}
	}

	if stale {
		s.refreshAsync(account)
	}

	return &BalanceResult{AccountID: accountID, Balance: value, Stale: stale}, nil
}

// MaxRiskAmount resolves a strategy's risk-per-trade rule to a money
// amount, using the configured basis (initial vs live balance) for the
// percentage mode. Inactive rules resolve to zero.
func MaxRiskAmount(rule domain.MaxRiskPerTradeRule, initialBalance, liveBalance decimal.Decimal) decimal.Decimal {
	if !rule.IsActive {
		return decimal.Zero
	}
	switch rule.Mode {
	case domain.RiskModeFixed:
		return decimal.NewFromFloat(rule.FixedAmount)
	case domain.RiskModePercent:
		basis := initialBalance
		if rule.PercentBasis == domain.RiskBasisLiveBalance {
			basis = liveBalance
		}
		return basis.Mul(decimal.NewFromFloat(rule.Percent)).Div(decimal.NewFromInt(100))
	}
	return decimal.Zero
}

// refreshAsync fires one background fetch per account; concurrent callers
// coalesce onto the in-flight one.
func (s *BalanceService) refreshAsync(account *domain.TradingAccount) {
	s.mu.Lock()
	if s.refreshing[account.ID] {
		s.mu.Unlock()
		return
	}
	s.refreshing[account.ID] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.refreshing, account.ID)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		balance, err := s.provider.FetchBalance(ctx, account)
		if err != nil {
			// Keep serving the stale value; the next read retries.
			log.Printf("balance: refreshing account %s: %v", account.ID, err)
			return
		}

		s.cache.SetBalance(account.ID, balance)
		if s.snapshots != nil {
			if err := s.snapshots.Save(ctx, account.ID, balance, time.Now()); err != nil {
				log.Printf("balance: persisting snapshot for account %s: %v", account.ID, err)
			}
		}
	}()
}
