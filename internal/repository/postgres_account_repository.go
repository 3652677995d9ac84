package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"strategy-backend/internal/domain"
)

// PostgresAccountRepository stores trading accounts in Postgres.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *domain.TradingAccount) error {
	if account == nil {
		return errors.New("nil account")
	}

	_, err := r.pool.Exec(ctx, `
		insert into trading_accounts(id, user_id, broker, label, initial_balance, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`,
		account.ID,
		account.UserID,
		account.Broker,
		account.Label,
		account.InitialBalance,
		account.CreatedAt,
	)
	return err
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id string) (*domain.TradingAccount, error) {
	row := r.pool.QueryRow(ctx, `
		select id, user_id, broker, label, initial_balance, created_at
		from trading_accounts
		where id = $1
	`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *PostgresAccountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.TradingAccount, error) {
	rows, err := r.pool.Query(ctx, `
		select id, user_id, broker, label, initial_balance, created_at
		from trading_accounts
		where user_id = $1
		order by created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*domain.TradingAccount, 0)
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *PostgresAccountRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `delete from trading_accounts where id=$1`, id)
	return err
}

func scanAccount(s scanner) (*domain.TradingAccount, error) {
	var a domain.TradingAccount
	var balance decimal.Decimal

	if err := s.Scan(
		&a.ID,
		&a.UserID,
		&a.Broker,
		&a.Label,
		&balance,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.InitialBalance = balance
	return &a, nil
}

// scanner lets one scan helper cover pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

var _ domain.AccountRepository = (*PostgresAccountRepository)(nil)
