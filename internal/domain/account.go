package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TradingAccount is a user's linked trading account. Strategy creation is
// disabled entirely while the user has zero accounts.
type TradingAccount struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Broker         string          `json:"broker"`
	Label          string          `json:"label"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// AccountRepository stores trading accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *TradingAccount) error
	GetByID(ctx context.Context, id string) (*TradingAccount, error)
	ListByUser(ctx context.Context, userID string) ([]*TradingAccount, error)
	Delete(ctx context.Context, id string) error
}

// BalanceProvider fetches the live balance of a trading account from the
// broker. Implementations perform the network round trip; callers decide
// when a cached balance is stale enough to warrant one.
type BalanceProvider interface {
	FetchBalance(ctx context.Context, account *TradingAccount) (decimal.Decimal, error)
}

// BalanceSnapshotRepository persists the last fetched balance per account so
// a freshly started process can serve a non-zero advisory value immediately.
type BalanceSnapshotRepository interface {
	Save(ctx context.Context, accountID string, balance decimal.Decimal, fetchedAt time.Time) error
	Get(ctx context.Context, accountID string) (balance decimal.Decimal, fetchedAt time.Time, err error)
}
