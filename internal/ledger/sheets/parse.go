package sheets

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pennypal/internal/core"
)

// parseTransactions turns rows of the transactions sheet into transactions.
// A leading header row is skipped. Rows without a user, kind or positive
// amount are dropped and counted; dates are kept raw and judged later.
func parseTransactions(sheet string, rows [][]any) ([]core.Transaction, int) {
	var (
		out []core.Transaction
		bad int
	)
	for i, row := range rows {
		cols := toStrings(row)
		if isBlank(cols) || (i == 0 && isHeader(cols)) {
			continue
		}
		tx := core.Transaction{
			UserID:      safeGet(cols, 0),
			ID:          safeGet(cols, 1),
			Date:        safeGet(cols, 2),
			Category:    safeGet(cols, 5),
			Description: safeGet(cols, 6),
		}
		if tx.UserID == "" {
			bad++
			continue
		}
		kind, err := core.ParseKind(safeGet(cols, 3))
		if err != nil {
			bad++
			continue
		}
		tx.Kind = kind
		if tx.Amount, err = core.ParseAmount(safeGet(cols, 4)); err != nil {
			bad++
			continue
		}
		if tx.ID == "" {
			// row numbers are stable enough to key an append-only sheet
			tx.ID = fmt.Sprintf("%s!%d", sheet, i+1)
		}
		if tx.Kind == core.Income {
			tx.Category = ""
		}
		out = append(out, tx)
	}
	return out, bad
}

// parseGoals reads the goals sheet. Blank cells count as zero; the last row
// of a user wins.
func parseGoals(rows [][]any) (map[string]core.Goal, int) {
	out := make(map[string]core.Goal)
	bad := 0
	for i, row := range rows {
		cols := toStrings(row)
		if isBlank(cols) || (i == 0 && isHeader(cols)) {
			continue
		}
		user := safeGet(cols, 0)
		if user == "" {
			bad++
			continue
		}
		var (
			g   core.Goal
			err error
		)
		for j, dst := range []*decimal.Decimal{&g.IncomeGoal, &g.SpendingLimit, &g.MinSpendingGoal} {
			if *dst, err = parseGoalCell(safeGet(cols, j+1)); err != nil {
				break
			}
		}
		if err != nil || g.Validate() != nil {
			bad++
			continue
		}
		out[user] = g
	}
	return out, bad
}

func parseGoalCell(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}

func isHeader(cols []string) bool {
	return strings.EqualFold(safeGet(cols, 0), "userid") || strings.EqualFold(safeGet(cols, 0), "user")
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
