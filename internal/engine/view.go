package engine

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"pennypal/internal/core"
	"pennypal/internal/services"
)

// View is what a presentation layer renders. Every amount is in Currency.
type View struct {
	UserID    string      `json:"userId"`
	Currency  string      `json:"currency"`
	Period    core.Period `json:"period"`
	PeriodKey string      `json:"periodKey"`
	Start     civil.Date  `json:"start"`
	End       civil.Date  `json:"end"`

	CategoryTotals map[string]decimal.Decimal `json:"categoryTotals"`
	Categories     []core.CategoryTotal       `json:"categories"`
	TotalIncome    decimal.Decimal            `json:"totalIncome"`
	TotalExpense   decimal.Decimal            `json:"totalExpense"`
	// Balance is period income minus period expense.
	Balance decimal.Decimal `json:"balance"`

	GoalProgress float64 `json:"goalProgress"`
	// BalanceVsGoal is the spending limit minus period expense.
	BalanceVsGoal      decimal.Decimal `json:"balanceVsGoal"`
	IncomeGoalProgress float64         `json:"incomeGoalProgress"`
	SpentOfIncome      float64         `json:"spentOfIncome"`
	IncomeGoal         decimal.Decimal `json:"incomeGoal"`
	SpendingLimit      decimal.Decimal `json:"spendingLimit"`
	MinSpendingGoal    decimal.Decimal `json:"minSpendingGoal"`

	Badges    []core.Badge `json:"badges"`
	NewBadges []core.Badge `json:"newBadges,omitempty"`

	AllTime core.Totals                   `json:"allTime"`
	Recent  map[string][]core.Transaction `json:"recent"`
	Skipped int                           `json:"skipped"`

	GeneratedAt time.Time `json:"generatedAt"`

	// award is what Award evaluates, kept in base currency.
	award services.AwardInput
}
