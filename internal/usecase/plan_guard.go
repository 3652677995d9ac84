package usecase

import (
	"context"
	"fmt"

	"strategy-backend/internal/domain"
)

// PlanGuard decides whether a user's subscription permits creating another
// account or strategy, and what the denial message should offer. It is a
// pure function of the subscription status and plan definition; resource
// counts come from the caller.
type PlanGuard struct {
	plans domain.PlanRepository
	subs  domain.SubscriptionRepository
}

func NewPlanGuard(plans domain.PlanRepository, subs domain.SubscriptionRepository) *PlanGuard {
	return &PlanGuard{plans: plans, subs: subs}
}

// CheckUserLimitations classifies the user's subscription into exactly one
// limitation state. Blocking statuses (banned, cancelled, never subscribed)
// win regardless of counts; only an active subscription compares the current
// strategy count against the plan limit.
func (g *PlanGuard) CheckUserLimitations(ctx context.Context, userID string, strategyCount int) (*domain.Limitations, error) {
	sub, err := g.subs.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	if sub == nil {
		return &domain.Limitations{
			State:             domain.LimitNeedsSubscription,
			NeedsSubscription: true,
		}, nil
	}

	switch sub.Status {
	case domain.SubscriptionBanned:
		return &domain.Limitations{State: domain.LimitBanned, IsBanned: true}, nil
	case domain.SubscriptionCancelled:
		return &domain.Limitations{State: domain.LimitCancelled, IsCancelled: true}, nil
	}

	plan, err := g.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	lim := &domain.Limitations{
		State:         domain.LimitWithinLimits,
		PlanName:      plan.Name,
		MaxAccounts:   plan.MaxAccounts,
		MaxStrategies: plan.MaxStrategies,
	}
	if strategyCount >= plan.MaxStrategies {
		lim.State = domain.LimitAtLimit
	}
	return lim, nil
}

// CanCreateStrategy answers a strategy-creation request. At the limit, the
// decision carries the upgrade prompt, except on the top tier, which has
// nowhere further to upgrade, so the action is only disabled.
func (g *PlanGuard) CanCreateStrategy(ctx context.Context, userID string, strategyCount int) (*domain.CreationDecision, error) {
	lim, err := g.CheckUserLimitations(ctx, userID, strategyCount)
	if err != nil {
		return nil, err
	}

	switch lim.State {
	case domain.LimitNeedsSubscription:
		return &domain.CreationDecision{
			Reason:      "An active subscription is required to create strategies.",
			ShowUpgrade: true,
		}, nil
	case domain.LimitBanned:
		return &domain.CreationDecision{
			Reason: "This account is blocked from creating strategies.",
		}, nil
	case domain.LimitCancelled:
		return &domain.CreationDecision{
			Reason:      "Your subscription is cancelled. Resubscribe to create strategies.",
			ShowUpgrade: true,
		}, nil
	case domain.LimitAtLimit:
		topTier, err := g.isTopTier(ctx, lim.PlanName)
		if err != nil {
			return nil, err
		}
		return &domain.CreationDecision{
			Reason:      fmt.Sprintf("The %s plan allows up to %d strategies.", lim.PlanName, lim.MaxStrategies),
			PlanName:    lim.PlanName,
			ShowUpgrade: !topTier,
		}, nil
	}

	return &domain.CreationDecision{CanCreate: true, PlanName: lim.PlanName}, nil
}

// CanCreateAccount is the account-side twin of CanCreateStrategy.
func (g *PlanGuard) CanCreateAccount(ctx context.Context, userID string, accountCount int) (*domain.CreationDecision, error) {
	lim, err := g.CheckUserLimitations(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	switch lim.State {
	case domain.LimitNeedsSubscription:
		return &domain.CreationDecision{
			Reason:      "An active subscription is required to link trading accounts.",
			ShowUpgrade: true,
		}, nil
	case domain.LimitBanned:
		return &domain.CreationDecision{
			Reason: "This account is blocked from linking trading accounts.",
		}, nil
	case domain.LimitCancelled:
		return &domain.CreationDecision{
			Reason:      "Your subscription is cancelled. Resubscribe to link trading accounts.",
			ShowUpgrade: true,
		}, nil
	}

	if accountCount >= lim.MaxAccounts {
		topTier, err := g.isTopTier(ctx, lim.PlanName)
		if err != nil {
			return nil, err
		}
		return &domain.CreationDecision{
			Reason:      fmt.Sprintf("The %s plan allows up to %d trading accounts.", lim.PlanName, lim.MaxAccounts),
			PlanName:    lim.PlanName,
			ShowUpgrade: !topTier,
		}, nil
	}

	return &domain.CreationDecision{CanCreate: true, PlanName: lim.PlanName}, nil
}

// ValidateDowngrade computes whether the user fits into the target plan and,
// when not, exactly how many accounts and strategies must be removed first.
func (g *PlanGuard) ValidateDowngrade(ctx context.Context, targetPlanName string, accountCount, strategyCount int) (*domain.DowngradeCheck, error) {
	target, err := g.plans.GetByName(ctx, targetPlanName)
	if err != nil {
		return nil, err
	}

	check := &domain.DowngradeCheck{TargetPlan: target.Name}
	if accountCount > target.MaxAccounts {
		check.ExcessAccounts = accountCount - target.MaxAccounts
	}
	if strategyCount > target.MaxStrategies {
		check.ExcessStrategies = strategyCount - target.MaxStrategies
	}
	check.Allowed = check.ExcessAccounts == 0 && check.ExcessStrategies == 0
	return check, nil
}

func (g *PlanGuard) isTopTier(ctx context.Context, planName string) (bool, error) {
	plans, err := g.plans.List(ctx)
	if err != nil {
		return false, err
	}
	var current, maxTier int
	for _, p := range plans {
		if p.Tier > maxTier {
			maxTier = p.Tier
		}
		if p.Name == planName {
			current = p.Tier
		}
	}
	return current >= maxTier, nil
}
