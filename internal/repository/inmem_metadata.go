package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"strategy-backend/internal/domain"
)

// In-memory implementations of the metadata repositories, used in dev mode
// when no DATABASE_URL is configured and as test fixtures.

type InMemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.TradingAccount
}

func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{accounts: make(map[string]*domain.TradingAccount)}
}

func (r *InMemoryAccountRepository) Create(ctx context.Context, account *domain.TradingAccount) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	a := *account
	r.accounts[a.ID] = &a
	return nil
}

func (r *InMemoryAccountRepository) GetByID(ctx context.Context, id string) (*domain.TradingAccount, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *InMemoryAccountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.TradingAccount, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]*domain.TradingAccount, 0)
	for _, a := range r.accounts {
		if a.UserID == userID {
			clone := *a
			accounts = append(accounts, &clone)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *InMemoryAccountRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

var _ domain.AccountRepository = (*InMemoryAccountRepository)(nil)

type InMemoryPlanRepository struct {
	mu    sync.RWMutex
	plans map[string]*domain.Plan
}

func NewInMemoryPlanRepository(plans ...*domain.Plan) *InMemoryPlanRepository {
	r := &InMemoryPlanRepository{plans: make(map[string]*domain.Plan)}
	for _, p := range plans {
		clone := *p
		r.plans[p.ID] = &clone
	}
	return r
}

// DefaultPlans mirrors the seeded Postgres tiers.
func DefaultPlans() []*domain.Plan {
	return []*domain.Plan{
		{ID: "plan-starter", Name: "Starter", Tier: 1, MaxAccounts: 1, MaxStrategies: 2, MonthlyPrice: decimal.NewFromInt(19)},
		{ID: "plan-trader", Name: "Trader", Tier: 2, MaxAccounts: 3, MaxStrategies: 5, MonthlyPrice: decimal.NewFromInt(49)},
		{ID: "plan-professional", Name: "Professional", Tier: 3, MaxAccounts: 10, MaxStrategies: 20, MonthlyPrice: decimal.NewFromInt(99)},
	}
}

func (r *InMemoryPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *InMemoryPlanRepository) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plans {
		if p.Name == name {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

func (r *InMemoryPlanRepository) List(ctx context.Context) ([]*domain.Plan, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	plans := make([]*domain.Plan, 0, len(r.plans))
	for _, p := range r.plans {
		clone := *p
		plans = append(plans, &clone)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Tier < plans[j].Tier })
	return plans, nil
}

var _ domain.PlanRepository = (*InMemoryPlanRepository)(nil)

type InMemorySubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscription // userID -> subscription
}

func NewInMemorySubscriptionRepository() *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{subs: make(map[string]*domain.Subscription)}
}

func (r *InMemorySubscriptionRepository) GetByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[userID]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *InMemorySubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *sub
	r.subs[sub.UserID] = &clone
	return nil
}

var _ domain.SubscriptionRepository = (*InMemorySubscriptionRepository)(nil)

// InMemoryBalanceSnapshotRepository keeps balance snapshots in process.
type InMemoryBalanceSnapshotRepository struct {
	mu        sync.RWMutex
	balances  map[string]decimal.Decimal
	fetchedAt map[string]time.Time
}

func NewInMemoryBalanceSnapshotRepository() *InMemoryBalanceSnapshotRepository {
	return &InMemoryBalanceSnapshotRepository{
		balances:  make(map[string]decimal.Decimal),
		fetchedAt: make(map[string]time.Time),
	}
}

func (r *InMemoryBalanceSnapshotRepository) Save(ctx context.Context, accountID string, balance decimal.Decimal, fetchedAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[accountID] = balance
	r.fetchedAt[accountID] = fetchedAt
	return nil
}

func (r *InMemoryBalanceSnapshotRepository) Get(ctx context.Context, accountID string) (decimal.Decimal, time.Time, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[accountID]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNoBalanceSnapshot
	}
	return b, r.fetchedAt[accountID], nil
}

var _ domain.BalanceSnapshotRepository = (*InMemoryBalanceSnapshotRepository)(nil)
