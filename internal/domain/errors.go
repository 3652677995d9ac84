package domain

import "errors"

// Error taxonomy. Transient-remote errors (ErrRateLimited) are recovered
// locally by omitting the affected item; not-found errors abort the
// attempted action; precondition failures are returned as structured
// validation results, not errors.
var (
	// ErrRateLimited marks a remote-store throttling response (HTTP 429 /
	// gRPC ResourceExhausted).
	ErrRateLimited = errors.New("remote store rate limited")

	// ErrStrategyNotFound marks a missing overview or configuration id.
	ErrStrategyNotFound = errors.New("strategy not found")

	// ErrAccountNotFound marks a missing trading account.
	ErrAccountNotFound = errors.New("trading account not found")

	// ErrPlanNotFound marks an unknown plan id or name.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrNoTradingAccounts blocks strategy creation while the user has no
	// linked trading account.
	ErrNoTradingAccounts = errors.New("no trading accounts linked")

	// ErrNoBalanceSnapshot marks an account that has never had a balance
	// persisted.
	ErrNoBalanceSnapshot = errors.New("no balance snapshot")
)
