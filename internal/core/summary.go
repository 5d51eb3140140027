package core

import "github.com/shopspring/decimal"

const (
	BudgetKeeper BadgeType = "budget_keeper"
	SavingsStar  BadgeType = "savings_star"
)

// BadgeType names an achievement rule.
type BadgeType string

// Badge is a one-time achievement for a period. Once stored it is never
// modified or deleted.
type Badge struct {
	ID            string    `json:"id"`
	Type          BadgeType `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	EarnedDateKey string    `json:"earnedDate"`
	PeriodKey     string    `json:"periodKey"`
}

// BadgeID is the deterministic identity of a badge: one per type per period.
func BadgeID(t BadgeType, periodKey string) string {
	return string(t) + "_" + periodKey
}

// CategoryTotal is the derived sum of one category's expenses.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Totals is an income/expense pair with its difference.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}
