package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"strategy-backend/internal/domain"
)

// PostgresPlanRepository reads plan definitions and subscription records.
type PostgresPlanRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepository(pool *pgxpool.Pool) *PostgresPlanRepository {
	return &PostgresPlanRepository{pool: pool}
}

const planColumns = `id, name, tier, max_accounts, max_strategies, monthly_price`

func (r *PostgresPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	row := r.pool.QueryRow(ctx, `select `+planColumns+` from plans where id = $1`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	return plan, nil
}

func (r *PostgresPlanRepository) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	row := r.pool.QueryRow(ctx, `select `+planColumns+` from plans where name = $1`, name)
	plan, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", name, err)
	}
	return plan, nil
}

func (r *PostgresPlanRepository) List(ctx context.Context) ([]*domain.Plan, error) {
	rows, err := r.pool.Query(ctx, `select `+planColumns+` from plans order by tier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]*domain.Plan, 0)
	for rows.Next() {
		plan, scanErr := scanPlan(rows)
		if scanErr != nil {
			continue
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func scanPlan(s scanner) (*domain.Plan, error) {
	var p domain.Plan
	if err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Tier,
		&p.MaxAccounts,
		&p.MaxStrategies,
		&p.MonthlyPrice,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ domain.PlanRepository = (*PostgresPlanRepository)(nil)

// PostgresSubscriptionRepository stores one subscription record per user.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

func (r *PostgresSubscriptionRepository) GetByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx, `
		select id, user_id, plan_id, status, period_start, period_end, cancelled_at
		from subscriptions
		where user_id = $1
	`, userID)

	var sub domain.Subscription
	var cancelledAt pgtype.Timestamptz
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.Status,
		&sub.PeriodStart,
		&sub.PeriodEnd,
		&cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Never subscribed.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		sub.CancelledAt = &t
	}
	return &sub, nil
}

func (r *PostgresSubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil {
		return errors.New("nil subscription")
	}

	var cancelledAt any = pgtype.Timestamptz{Valid: false}
	if sub.CancelledAt != nil {
		cancelledAt = pgtype.Timestamptz{Valid: true, Time: *sub.CancelledAt}
	}

	_, err := r.pool.Exec(ctx, `
		insert into subscriptions(id, user_id, plan_id, status, period_start, period_end, cancelled_at)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (user_id) do update set
			plan_id = excluded.plan_id,
			status = excluded.status,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			cancelled_at = excluded.cancelled_at
	`,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		sub.Status,
		sub.PeriodStart,
		sub.PeriodEnd,
		cancelledAt,
	)
	return err
}

var _ domain.SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
