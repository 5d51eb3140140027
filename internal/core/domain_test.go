package core

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func TestTransactionDay(t *testing.T) {
	tx := Transaction{Date: "2024-05-20"}
	d, err := tx.Day()
	assert.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: 5, Day: 20}, d)

	for _, raw := range []string{"", "20/05/2024", "2024-13-01", "yesterday"} {
		_, err := Transaction{Date: raw}.Day()
		assert.IsError(t, err, ErrInvalidDate)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID:   "u1",
		Date:     "2024-05-20",
		Amount:   decimal.NewFromInt(100),
		Category: "Food",
		Kind:     Expense,
	}
	assert.NoError(t, good.Validate())

	income := good
	income.Kind = Income
	income.Category = ""
	assert.NoError(t, income.Validate())

	cases := []struct {
		name string
		mod  func(*Transaction)
		want error
	}{
		{"no user", func(tx *Transaction) { tx.UserID = " " }, ErrEmptyUser},
		{"bad date", func(tx *Transaction) { tx.Date = "nope" }, ErrInvalidDate},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"expense without category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"long description", func(tx *Transaction) { tx.Description = strings.Repeat("x", 201) }, ErrDescriptionLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := good
			tc.mod(&tx)
			assert.IsError(t, tx.Validate(), tc.want)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Expense ")
	assert.NoError(t, err)
	assert.Equal(t, Expense, k)

	_, err = ParseKind("transfer")
	assert.IsError(t, err, ErrInvalidKind)
}

func TestGoalValidate(t *testing.T) {
	assert.NoError(t, DefaultGoal(decimal.NewFromInt(20000)).Validate())
	assert.IsError(t, Goal{MinSpendingGoal: decimal.NewFromInt(-1)}.Validate(), ErrNegativeGoal)
}

func TestParsePeriod(t *testing.T) {
	for _, in := range []string{"Monthly", "monthly", " MONTHLY "} {
		p, err := ParsePeriod(in)
		assert.NoError(t, err)
		assert.Equal(t, Monthly, p)
	}
	_, err := ParsePeriod("Quarterly")
	assert.IsError(t, err, ErrUnknownPeriod)
}

func TestBadgeID(t *testing.T) {
	assert.Equal(t, "budget_keeper_2024-05", BadgeID(BudgetKeeper, "2024-05"))
	assert.Equal(t, "savings_star_2024", BadgeID(SavingsStar, "2024"))
}

func TestSessionValidate(t *testing.T) {
	assert.NoError(t, Session{UserID: "u1", DisplayCurrency: "ZAR"}.Validate())
	assert.IsError(t, Session{DisplayCurrency: "ZAR"}.Validate(), ErrEmptyUser)
	assert.IsError(t, Session{UserID: "u1"}.Validate(), ErrEmptyCurrency)
}
