package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the minimal tables needed by this app.
// This keeps setup simple (no external migration tool), but still gives persistence.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists trading_accounts (
			id text primary key,
			user_id text not null,
			broker text not null default '',
			label text not null default '',
			initial_balance numeric(18,2) not null default 0,
			created_at timestamptz not null default now()
		);`,
		`create index if not exists trading_accounts_user_idx on trading_accounts(user_id);`,
		`create table if not exists plans (
			id text primary key,
			name text not null unique,
			tier int not null,
			max_accounts int not null default 0,
			max_strategies int not null default 0,
			monthly_price numeric(10,2) not null default 0
		);`,
		`create table if not exists subscriptions (
			id text primary key,
			user_id text not null unique,
			plan_id text not null references plans(id),
			status text not null,
			period_start timestamptz not null,
			period_end timestamptz not null,
			cancelled_at timestamptz null
		);`,
		`create index if not exists subscriptions_user_idx on subscriptions(user_id);`,
		`create table if not exists balance_snapshots (
			account_id text primary key references trading_accounts(id) on delete cascade,
			balance numeric(18,2) not null default 0,
			fetched_at timestamptz not null
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SeedPlans inserts the default plan tiers if they are not present yet.
func SeedPlans(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		insert into plans(id, name, tier, max_accounts, max_strategies, monthly_price)
		values
			('plan-starter', 'Starter', 1, 1, 2, 19.00),
			('plan-trader', 'Trader', 2, 3, 5, 49.00),
			('plan-professional', 'Professional', 3, 10, 20, 99.00)
		on conflict (id) do nothing
	`)
	return err
}
