package domain

import (
	"context"
	"time"
)

// StrategyOverview is the lightweight per-strategy record: naming, the active
// flag and the activation audit trail. The rule blocks live in the paired
// StrategyConfiguration, addressed by ConfigurationID.
type StrategyOverview struct {
	ID              string      `json:"id" firestore:"-"`
	UserID          string      `json:"userId" firestore:"userId"`
	Name            string      `json:"name" firestore:"name"`
	Status          bool        `json:"status" firestore:"status"` // at most one true per user
	CreatedAt       time.Time   `json:"createdAt" firestore:"created_at"`
	UpdatedAt       time.Time   `json:"updatedAt" firestore:"updated_at"`
	DaysActive      int         `json:"daysActive" firestore:"days_active"`
	ConfigurationID string      `json:"configurationId" firestore:"configurationId"`
	DateActive      []time.Time `json:"dateActive" firestore:"dateActive"`
	DateInactive    []time.Time `json:"dateInactive" firestore:"dateInactive"`
	Deleted         bool        `json:"deleted" firestore:"deleted"`
	DeletedAt       *time.Time  `json:"deletedAt,omitempty" firestore:"deleted_at"`
}

// RecomputeDaysActive refreshes the derived age counter from CreatedAt.
func (o *StrategyOverview) RecomputeDaysActive(now time.Time) {
	days := int(now.Sub(o.CreatedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	o.DaysActive = days
}

// Risk-per-trade sub-modes.
const (
	RiskModePercent = "PERCENT"
	RiskModeFixed   = "FIXED"

	RiskBasisInitialBalance = "INITIAL_BALANCE"
	RiskBasisLiveBalance    = "LIVE_BALANCE"
)

// MaxDailyTradesRule caps how many trades may be opened per day.
type MaxDailyTradesRule struct {
	IsActive bool `json:"isActive" firestore:"isActive"`
	Limit    int  `json:"limit" firestore:"limit"`
}

// RiskRewardRule requires a minimum reward-to-risk ratio, kept as the
// display string the editor produces (e.g. "1:3").
type RiskRewardRule struct {
	IsActive bool   `json:"isActive" firestore:"isActive"`
	Ratio    string `json:"ratio" firestore:"ratio"`
}

// MaxRiskPerTradeRule caps risk per trade either as a percentage of balance
// (initial or live basis) or as a fixed money amount.
type MaxRiskPerTradeRule struct {
	IsActive     bool    `json:"isActive" firestore:"isActive"`
	Mode         string  `json:"mode" firestore:"mode"`
	Percent      float64 `json:"percent" firestore:"percent"`
	PercentBasis string  `json:"percentBasis" firestore:"percentBasis"`
	FixedAmount  float64 `json:"fixedAmount" firestore:"fixedAmount"`
}

// TradingDaysRule whitelists weekdays ("MON".."SUN").
type TradingDaysRule struct {
	IsActive bool     `json:"isActive" firestore:"isActive"`
	Days     []string `json:"days" firestore:"days"`
}

// TradingHoursRule whitelists a daily time window in a named timezone.
type TradingHoursRule struct {
	IsActive bool   `json:"isActive" firestore:"isActive"`
	Start    string `json:"start" firestore:"start"` // "HH:MM"
	End      string `json:"end" firestore:"end"`
	Timezone string `json:"timezone" firestore:"timezone"`
}

// AssetsRule whitelists tradable symbols.
type AssetsRule struct {
	IsActive bool     `json:"isActive" firestore:"isActive"`
	Symbols  []string `json:"symbols" firestore:"symbols"`
}

// StrategyConfiguration holds the six independent rule blocks of one
// strategy. Sub-fields are only meaningful while their block is active; the
// remote store may retain stale values on inactive blocks, so callers that
// display a configuration should normalize it first.
type StrategyConfiguration struct {
	ID              string              `json:"id" firestore:"-"`
	UserID          string              `json:"userId" firestore:"userId"`
	MaxDailyTrades  MaxDailyTradesRule  `json:"maxDailyTrades" firestore:"maxDailyTrades"`
	RiskReward      RiskRewardRule      `json:"riskReward" firestore:"riskReward"`
	MaxRiskPerTrade MaxRiskPerTradeRule `json:"maxRiskPerTrade" firestore:"maxRiskPerTrade"`
	TradingDays     TradingDaysRule     `json:"tradingDays" firestore:"tradingDays"`
	TradingHours    TradingHoursRule    `json:"tradingHours" firestore:"tradingHours"`
	Assets          AssetsRule          `json:"assets" firestore:"assets"`
	UpdatedAt       time.Time           `json:"updatedAt" firestore:"updated_at"`
}

// NormalizeInactive zeroes the sub-fields of every inactive rule block so
// stale stored values never leak into the presented configuration.
func (c *StrategyConfiguration) NormalizeInactive() {
	if !c.MaxDailyTrades.IsActive {
		c.MaxDailyTrades.Limit = 0
	}
	if !c.RiskReward.IsActive {
		c.RiskReward.Ratio = ""
	}
	if !c.MaxRiskPerTrade.IsActive {
		c.MaxRiskPerTrade.Mode = ""
		c.MaxRiskPerTrade.Percent = 0
		c.MaxRiskPerTrade.PercentBasis = ""
		c.MaxRiskPerTrade.FixedAmount = 0
	}
	if !c.TradingDays.IsActive {
		c.TradingDays.Days = nil
	}
	if !c.TradingHours.IsActive {
		c.TradingHours.Start = ""
		c.TradingHours.End = ""
		c.TradingHours.Timezone = ""
	}
	if !c.Assets.IsActive {
		c.Assets.Symbols = nil
	}
}

// ActiveRuleCount reports how many rule blocks are switched on.
func (c *StrategyConfiguration) ActiveRuleCount() int {
	n := 0
	for _, active := range []bool{
		c.MaxDailyTrades.IsActive,
		c.RiskReward.IsActive,
		c.MaxRiskPerTrade.IsActive,
		c.TradingDays.IsActive,
		c.TradingHours.IsActive,
		c.Assets.IsActive,
	} {
		if active {
			n++
		}
	}
	return n
}

// StrategyStore is the remote document store holding overview and
// configuration records. Implementations map provider throttling responses
// to ErrRateLimited so bulk loaders can apply the partial-failure policy.
type StrategyStore interface {
	ListOverviews(ctx context.Context, userID string) ([]*StrategyOverview, error)
	GetOverview(ctx context.Context, id string) (*StrategyOverview, error)
	GetConfiguration(ctx context.Context, id string) (*StrategyConfiguration, error)
	// CreateStrategy writes a new overview+configuration pair and returns
	// the store-assigned ids.
	CreateStrategy(ctx context.Context, overview *StrategyOverview, config *StrategyConfiguration) (overviewID, configID string, err error)
	UpdateOverview(ctx context.Context, overview *StrategyOverview) error
	UpdateConfiguration(ctx context.Context, config *StrategyConfiguration) error
}
