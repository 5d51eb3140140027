package report

import (
	"bytes"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"pennypal/internal/core"
	"pennypal/internal/engine"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProgressBar(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "[----------]"},
		{0.25, "[###-------]"},
		{0.7, "[#######---]"},
		{1, "[##########]"},
		{1.5, "[##########]"},
		{-1, "[----------]"},
	}
	for _, tt := range tests {
		t.Run(Percent(tt.ratio), func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressBar(tt.ratio, 10))
		})
	}
}

func TestPercentAndAmount(t *testing.T) {
	assert.Equal(t, "70%", Percent(0.7))
	assert.Equal(t, "0%", Percent(0))
	assert.Equal(t, "21.60", Amount(dec("21.6")))
	assert.Equal(t, "-200.00", Amount(dec("-200")))
}

func TestPadMeasuresDisplayWidth(t *testing.T) {
	assert.Equal(t, "食費  ", pad("食費", 6, false))
	assert.Equal(t, "  食費", pad("食費", 6, true))
	assert.Equal(t, "Food  ", pad("Food", 6, false))
}

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.table([][2]string{{"Food", "50.00"}, {"Transport", "1200.00"}, {"食費", "3.00"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"Food         50.00",
		"Transport  1200.00",
		"食費          3.00",
	}, lines)
}

func TestViewPlain(t *testing.T) {
	v := engine.View{
		UserID:    "u1",
		Currency:  "ZAR",
		Period:    core.Monthly,
		PeriodKey: "2024-06",
		Start:     civil.Date{Year: 2024, Month: 6, Day: 1},
		End:       civil.Date{Year: 2024, Month: 6, Day: 2},
		Categories: []core.CategoryTotal{
			{Category: "Rent", Total: dec("700")},
		},
		TotalExpense:  dec("700"),
		TotalIncome:   dec("0"),
		Balance:       dec("-700"),
		SpendingLimit: dec("1000"),
		BalanceVsGoal: dec("300"),
		GoalProgress:  0.7,
		Badges: []core.Badge{
			{ID: "budget_keeper_2024-06", Title: "Budget Keeper", PeriodKey: "2024-06", EarnedDateKey: "2024-06-02"},
		},
	}

	var buf bytes.Buffer
	NewPrinter(&buf, false).View(v)
	out := buf.String()

	assert.Contains(t, out, "u1 · Monthly 2024-06 (ZAR)")
	assert.Contains(t, out, "2024-06-01 to 2024-06-02")
	assert.Contains(t, out, "Rent  700.00")
	assert.Contains(t, out, "Balance   -700.00")
	assert.Contains(t, out, "Goal [##############------] 70%")
	assert.Contains(t, out, "Budget Keeper  2024-06  earned 2024-06-02")
	assert.NotContains(t, out, "\x1b[")
}

func TestViewEmptyPeriod(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).View(engine.View{UserID: "u1", Period: core.Daily, Currency: "ZAR"})
	assert.Contains(t, buf.String(), "No expenses in this period.")
}

func TestBadgesAndCurrencies(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.Badges(nil)
	p.Currencies("ZAR", []string{"EUR", "ZAR"})
	p.Conversion(dec("400"), "ZAR", dec("21.6"), "USD")

	assert.Equal(t, "No badges yet.\nEUR\nZAR (base)\n400 ZAR = 21.6 USD\n", buf.String())
}
