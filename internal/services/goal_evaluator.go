package services

import (
	"github.com/shopspring/decimal"

	"pennypal/internal/core"
)

// GoalStatus is the outcome of comparing period spending with the goal.
type GoalStatus struct {
	// Progress is spent/limit clamped to [0, 1]; 0 when there is no limit.
	Progress float64
	// Balance is limit minus spent; negative once the limit is exceeded.
	Balance decimal.Decimal
}

// EvaluateGoal compares total spending against the spending limit.
func EvaluateGoal(totalSpent decimal.Decimal, goal core.Goal) GoalStatus {
	return GoalStatus{
		Progress: ratio(totalSpent, goal.SpendingLimit),
		Balance:  goal.SpendingLimit.Sub(totalSpent),
	}
}

// IncomeProgress is how far period income got towards the income goal, in [0, 1].
func IncomeProgress(totalIncome decimal.Decimal, goal core.Goal) float64 {
	return ratio(totalIncome, goal.IncomeGoal)
}

// SpentOfIncome is the share of income already spent, in [0, 1]; 0 without income.
func SpentOfIncome(totalExpense, totalIncome decimal.Decimal) float64 {
	return ratio(totalExpense, totalIncome)
}

func ratio(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Div(whole).Float64()
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
