// Package engine turns a ledger snapshot into a View: it resolves the period,
// aggregates, converts to the display currency, evaluates the goal and
// awards badges.
package engine

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"pennypal/internal/core"
	"pennypal/internal/currency"
	"pennypal/internal/ledger"
	"pennypal/internal/log"
	"pennypal/internal/services"
)

// displayPlaces is the precision of converted amounts in a View.
const displayPlaces = 6

// DefaultSpendingLimit applies until a user saves a goal.
var DefaultSpendingLimit = decimal.NewFromInt(20000)

// Config tunes an Engine. The zero value is usable.
type Config struct {
	// DefaultSpendingLimit is the limit of users without a goal. When not
	// Valid the package DefaultSpendingLimit applies; a valid zero is kept.
	DefaultSpendingLimit decimal.NullDecimal
	// Location decides which calendar day "today" is.
	Location *time.Location
	Now      func() time.Time
	Rules    []services.BadgeRule
}

// Engine computes views from a ledger store and awards badges into a badge
// store. It is safe for concurrent use.
type Engine struct {
	store      ledger.Store
	badges     ledger.BadgeStore
	rates      *currency.Table
	aggregator *services.Aggregator
	awarder    *services.BadgeAwarder
	cfg        Config
	logger     *log.Logger
}

// New returns an Engine reading from store and writing badges to badges.
// Unset Config fields take their defaults.
func New(store ledger.Store, badges ledger.BadgeStore, rates *currency.Table, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if !cfg.DefaultSpendingLimit.Valid {
		cfg.DefaultSpendingLimit = decimal.NewNullDecimal(DefaultSpendingLimit)
	}
	return &Engine{
		store:      store,
		badges:     badges,
		rates:      rates,
		aggregator: services.NewAggregator(logger),
		awarder:    services.NewBadgeAwarder(badges, logger, cfg.Rules...),
		cfg:        cfg,
		logger:     logger.WithComponent(log.ComponentEngine),
	}
}

// Rates returns the currency table the engine converts with.
func (e *Engine) Rates() *currency.Table { return e.rates }

func (e *Engine) now() time.Time {
	return e.cfg.Now().In(e.cfg.Location)
}

// Today is the current calendar day in the engine's location.
func (e *Engine) Today() civil.Date {
	return civil.DateOf(e.now())
}

// View computes the current view once.
func (e *Engine) View(ctx context.Context, sess core.Session, period core.Period) (View, error) {
	if err := e.check(sess, period); err != nil {
		return View{}, err
	}
	snap, err := e.store.Snapshot(ctx, sess.UserID)
	if err != nil {
		return View{}, fmt.Errorf("load snapshot: %w", err)
	}
	return e.Compute(ctx, sess, period, snap)
}

func (e *Engine) check(sess core.Session, period core.Period) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if err := e.rates.Validate(sess.DisplayCurrency); err != nil {
		return err
	}
	_, err := services.GetPeriodResolver(period)
	return err
}

// Compute derives a View from snap and awards the badges it earns. Badge
// store failures are logged and do not fail the computation.
func (e *Engine) Compute(ctx context.Context, sess core.Session, period core.Period, snap ledger.Snapshot) (View, error) {
	v, err := e.Project(ctx, sess, period, snap)
	if err != nil {
		return View{}, err
	}
	return e.Award(ctx, v), nil
}

// Award evaluates the badge rules for a projected view, then fills Badges
// with the store's current list and NewBadges with the ones created now.
// Calling it again on the same view retries writes that failed before.
func (e *Engine) Award(ctx context.Context, v View) View {
	in := v.award
	if in.UserID == "" {
		return v
	}
	created, err := e.awarder.Evaluate(ctx, in)
	if err != nil {
		e.logger.WarnContext(ctx, "Badge evaluation incomplete, will retry on next update",
			log.FieldUserID, in.UserID,
			log.FieldPeriodKey, in.PeriodKey,
			log.FieldError, err)
	}
	badges, err := e.badges.ListBadges(ctx, in.UserID)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to list badges", log.FieldUserID, in.UserID, log.FieldError, err)
		badges = created
	}
	v.Badges = badges
	v.NewBadges = created
	return v
}

// Project computes everything in a View except badges. It reads no store and
// its result depends only on the selection, snap and the current day.
func (e *Engine) Project(ctx context.Context, sess core.Session, period core.Period, snap ledger.Snapshot) (View, error) {
	if err := e.check(sess, period); err != nil {
		return View{}, err
	}
	now := e.now()
	rng, err := services.ResolveRange(period, now)
	if err != nil {
		return View{}, err
	}

	summary := e.aggregator.Aggregate(ctx, snap.Transactions, rng)
	goal := snap.GoalOr(core.DefaultGoal(e.cfg.DefaultSpendingLimit.Decimal))
	status := services.EvaluateGoal(summary.TotalExpense, goal)

	conv := converter{rates: e.rates, to: sess.DisplayCurrency}
	v := View{
		UserID:             sess.UserID,
		Currency:           sess.DisplayCurrency,
		Period:             period,
		PeriodKey:          rng.Key,
		Start:              rng.Start,
		End:                rng.End,
		CategoryTotals:     make(map[string]decimal.Decimal, len(summary.ByCategory)),
		Categories:         make([]core.CategoryTotal, 0, len(summary.ByCategory)),
		TotalExpense:       decimal.Zero,
		GoalProgress:       status.Progress,
		IncomeGoalProgress: services.IncomeProgress(summary.TotalIncome, goal),
		SpentOfIncome:      services.SpentOfIncome(summary.TotalExpense, summary.TotalIncome),
		Skipped:            summary.Skipped,
		GeneratedAt:        now,
		award: services.AwardInput{
			UserID:     sess.UserID,
			TotalSpent: summary.TotalExpense,
			Goal:       goal,
			PeriodKey:  rng.Key,
			EarnedOn:   civil.DateOf(now).String(),
		},
	}

	// category totals are converted one by one and the expense total is their
	// sum, so the two agree in the display currency too
	for _, ct := range summary.ByCategory {
		total := conv.amount(ct.Total)
		v.CategoryTotals[ct.Category] = total
		v.Categories = append(v.Categories, core.CategoryTotal{Category: ct.Category, Total: total})
		v.TotalExpense = v.TotalExpense.Add(total)
	}
	v.TotalIncome = conv.amount(summary.TotalIncome)
	v.Balance = v.TotalIncome.Sub(v.TotalExpense)
	v.SpendingLimit = conv.amount(goal.SpendingLimit)
	v.MinSpendingGoal = conv.amount(goal.MinSpendingGoal)
	v.IncomeGoal = conv.amount(goal.IncomeGoal)
	v.BalanceVsGoal = v.SpendingLimit.Sub(v.TotalExpense)

	all := e.aggregator.Totals(snap.Transactions)
	v.AllTime = core.Totals{Income: conv.amount(all.Income), Expense: conv.amount(all.Expense)}
	v.AllTime.Balance = v.AllTime.Income.Sub(v.AllTime.Expense)

	recent := e.aggregator.RecentByCategory(snap.Transactions, rng, services.RecentPerCategory)
	v.Recent = make(map[string][]core.Transaction, len(recent))
	for cat, txs := range recent {
		out := make([]core.Transaction, len(txs))
		for i, tx := range txs {
			tx.Amount = conv.amount(tx.Amount)
			out[i] = tx
		}
		v.Recent[cat] = out
	}

	if conv.err != nil {
		return View{}, conv.err
	}
	return v, nil
}

// converter keeps the first conversion error so that Compute can check once.
type converter struct {
	rates *currency.Table
	to    string
	err   error
}

func (c *converter) amount(d decimal.Decimal) decimal.Decimal {
	out, err := c.rates.FromBase(d, c.to)
	if err != nil {
		if c.err == nil {
			c.err = err
		}
		return decimal.Zero
	}
	return out.Round(displayPlaces)
}
