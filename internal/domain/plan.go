package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription statuses as stored by the billing collaborator.
const (
	SubscriptionActive    = "ACTIVE"
	SubscriptionCancelled = "CANCELLED"
	SubscriptionBanned    = "BANNED"
)

// Plan is a billing tier with its resource limits. Tier orders plans from
// cheapest to most expensive; the top tier has nowhere further to upgrade.
type Plan struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Tier          int             `json:"tier"`
	MaxAccounts   int             `json:"maxAccounts"`
	MaxStrategies int             `json:"maxStrategies"`
	MonthlyPrice  decimal.Decimal `json:"monthlyPrice"`
}

// Subscription is a user's billing record.
type Subscription struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	PlanID      string     `json:"planId"`
	Status      string     `json:"status"`
	PeriodStart time.Time  `json:"periodStart"`
	PeriodEnd   time.Time  `json:"periodEnd"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// Limitation states. A subscription resolves to exactly one of these; the
// blocking statuses win regardless of resource counts.
const (
	LimitNeedsSubscription = "NEEDS_SUBSCRIPTION"
	LimitBanned            = "BANNED"
	LimitCancelled         = "CANCELLED"
	LimitWithinLimits      = "WITHIN_LIMITS"
	LimitAtLimit           = "AT_LIMIT"
)

// Limitations is the guard's classification of a user's subscription plus
// the limits the current plan grants.
type Limitations struct {
	State             string `json:"state"`
	NeedsSubscription bool   `json:"needsSubscription"`
	IsBanned          bool   `json:"isBanned"`
	IsCancelled       bool   `json:"isCancelled"`
	PlanName          string `json:"planName,omitempty"`
	MaxAccounts       int    `json:"maxAccounts"`
	MaxStrategies     int    `json:"maxStrategies"`
}

// CreationDecision answers one "may the user create another X" request. When
// creation is denied, ShowUpgrade distinguishes the upgrade prompt from the
// hard block a top-tier user gets at their limit.
type CreationDecision struct {
	CanCreate   bool   `json:"canCreate"`
	Reason      string `json:"reason,omitempty"`
	PlanName    string `json:"planName,omitempty"`
	ShowUpgrade bool   `json:"showUpgrade"`
}

// DowngradeCheck reports whether a downgrade to the target plan is allowed
// and, when it is not, exactly how much must be removed first.
type DowngradeCheck struct {
	Allowed           bool   `json:"allowed"`
	TargetPlan        string `json:"targetPlan"`
	ExcessAccounts    int    `json:"excessAccounts"`
	ExcessStrategies  int    `json:"excessStrategies"`
}

// PlanRepository looks up plan definitions.
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*Plan, error)
	GetByName(ctx context.Context, name string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
}

// SubscriptionRepository looks up subscription records. GetByUser returns
// (nil, nil) when the user has never subscribed.
type SubscriptionRepository interface {
	GetByUser(ctx context.Context, userID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
}
