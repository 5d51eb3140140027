package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"pennypal/internal/core"
	"pennypal/internal/log"
)

// BadgeCreator is the write side of a badge store. CreateIfAbsent must be an
// atomic conditional write: when a badge with the same id exists it does
// nothing and reports created=false.
type BadgeCreator interface {
	CreateIfAbsent(ctx context.Context, userID string, badge core.Badge) (created bool, err error)
}

// AwardInput is what the rules look at.
type AwardInput struct {
	UserID     string
	TotalSpent decimal.Decimal
	Goal       core.Goal
	PeriodKey  string
	EarnedOn   string // yyyy-mm-dd
}

// BadgeRule decides whether one badge type is earned.
type BadgeRule interface {
	Type() core.BadgeType
	Earned(in AwardInput) bool
	Badge(in AwardInput) core.Badge
}

// BudgetKeeperRule is earned when spending stays within a positive limit.
type BudgetKeeperRule struct{}

func (BudgetKeeperRule) Type() core.BadgeType { return core.BudgetKeeper }

// Earned needs a positive limit; spending exactly the limit still counts.
func (BudgetKeeperRule) Earned(in AwardInput) bool {
	return in.Goal.SpendingLimit.IsPositive() && in.TotalSpent.LessThanOrEqual(in.Goal.SpendingLimit)
}

// Badge builds the period's Budget Keeper badge, id budget_keeper_<period key>.
func (r BudgetKeeperRule) Badge(in AwardInput) core.Badge {
	return core.Badge{
		ID:            core.BadgeID(r.Type(), in.PeriodKey),
		Type:          r.Type(),
		Title:         "Budget Keeper!",
		Description:   "You stayed under your spending limit for the period.",
		EarnedDateKey: in.EarnedOn,
		PeriodKey:     in.PeriodKey,
	}
}

// SavingsStarRule is earned when what is left of the limit covers the minimum savings goal.
type SavingsStarRule struct{}

func (SavingsStarRule) Type() core.BadgeType { return core.SavingsStar }

// Earned needs a positive minimum savings goal.
func (SavingsStarRule) Earned(in AwardInput) bool {
	target := in.Goal.MinSpendingGoal
	return target.IsPositive() && in.Goal.SpendingLimit.Sub(in.TotalSpent).GreaterThanOrEqual(target)
}

// Badge builds the period's Savings Star badge, id savings_star_<period key>.
func (r SavingsStarRule) Badge(in AwardInput) core.Badge {
	return core.Badge{
		ID:            core.BadgeID(r.Type(), in.PeriodKey),
		Type:          r.Type(),
		Title:         "Savings Star!",
		Description:   "You saved more than your minimum savings goal for the period.",
		EarnedDateKey: in.EarnedOn,
		PeriodKey:     in.PeriodKey,
	}
}

// DefaultRules is the rule set used when none is given.
func DefaultRules() []BadgeRule {
	return []BadgeRule{BudgetKeeperRule{}, SavingsStarRule{}}
}

// BadgeAwarder evaluates the rules and creates the earned badges exactly once
// per period.
type BadgeAwarder struct {
	store  BadgeCreator
	rules  []BadgeRule
	logger *log.Logger
}

// NewBadgeAwarder returns an awarder writing to store. Without rules it uses
// DefaultRules.
func NewBadgeAwarder(store BadgeCreator, logger *log.Logger, rules ...BadgeRule) *BadgeAwarder {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BadgeAwarder{store: store, rules: rules, logger: logger.WithComponent(log.ComponentBadges)}
}

// Evaluate runs every rule and writes the earned badges. It returns the
// badges created by this call. Store failures do not stop the other rules;
// they are logged and returned joined so the caller can decide what to do.
// A later evaluation retries them.
func (a *BadgeAwarder) Evaluate(ctx context.Context, in AwardInput) ([]core.Badge, error) {
	var (
		created []core.Badge
		errs    []error
	)
	for _, rule := range a.rules {
		if !rule.Earned(in) {
			continue
		}
		badge := rule.Badge(in)
		ok, err := a.store.CreateIfAbsent(ctx, in.UserID, badge)
		if err != nil {
			a.logger.WarnContext(ctx, "Failed to store badge",
				log.FieldUserID, in.UserID,
				log.FieldBadgeID, badge.ID,
				log.FieldError, err)
			errs = append(errs, fmt.Errorf("award %s: %w", badge.ID, err))
			continue
		}
		if ok {
			a.logger.InfoContext(ctx, "Badge awarded",
				log.FieldUserID, in.UserID,
				log.FieldBadgeID, badge.ID,
				log.FieldBadgeType, string(badge.Type))
			created = append(created, badge)
		}
	}
	return created, errors.Join(errs...)
}
