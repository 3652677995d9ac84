package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"strategy-backend/internal/domain"
)

// PostgresBalanceSnapshotRepository persists the last fetched balance per
// account, so a fresh process can serve an advisory value before the first
// broker round trip completes.
type PostgresBalanceSnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresBalanceSnapshotRepository(pool *pgxpool.Pool) *PostgresBalanceSnapshotRepository {
	return &PostgresBalanceSnapshotRepository{pool: pool}
}

func (r *PostgresBalanceSnapshotRepository) Save(ctx context.Context, accountID string, balance decimal.Decimal, fetchedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		insert into balance_snapshots(account_id, balance, fetched_at)
		values ($1,$2,$3)
		on conflict (account_id) do update set
			balance = excluded.balance,
			fetched_at = excluded.fetched_at
	`, accountID, balance, fetchedAt)
	return err
}

func (r *PostgresBalanceSnapshotRepository) Get(ctx context.Context, accountID string) (decimal.Decimal, time.Time, error) {
	row := r.pool.QueryRow(ctx, `
		select balance, fetched_at from balance_snapshots where account_id = $1
	`, accountID)

	var balance decimal.Decimal
	var fetchedAt time.Time
	if err := row.Scan(&balance, &fetchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, time.Time{}, domain.ErrNoBalanceSnapshot
		}
		return decimal.Zero, time.Time{}, err
	}
	return balance, fetchedAt, nil
}

var _ domain.BalanceSnapshotRepository = (*PostgresBalanceSnapshotRepository)(nil)
