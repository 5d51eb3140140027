package services

import (
	"context"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"pennypal/internal/core"
	"pennypal/internal/log"
)

// RecentPerCategory is how many recent expenses are kept per category.
const RecentPerCategory = 3

// Summary is the per-period aggregation result, amounts in base currency.
type Summary struct {
	ByCategory   []core.CategoryTotal
	TotalExpense decimal.Decimal
	TotalIncome  decimal.Decimal
	Skipped      int
}

// Balance is period income minus period expense.
func (s Summary) Balance() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpense)
}

// CategoryMap returns the category totals keyed by category.
func (s Summary) CategoryMap() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(s.ByCategory))
	for _, ct := range s.ByCategory {
		m[ct.Category] = ct.Total
	}
	return m
}

// Aggregator sums transactions into per-category and per-kind totals.
type Aggregator struct {
	logger *log.Logger
}

// NewAggregator returns an Aggregator that logs skipped transactions to logger.
func NewAggregator(logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Aggregator{logger: logger.WithComponent(log.ComponentAggregate)}
}

// Aggregate groups the expenses dated inside rng by category and sums the
// incomes dated inside rng. Transactions with unparsable dates are skipped
// and logged one by one. Categories come back in alphabetical order and
// their totals always add up to TotalExpense.
func (a *Aggregator) Aggregate(ctx context.Context, txs []core.Transaction, rng DateRange) Summary {
	s := Summary{TotalExpense: decimal.Zero, TotalIncome: decimal.Zero}
	byCat := make(map[string]decimal.Decimal)

	for _, tx := range txs {
		day, err := tx.Day()
		if err != nil {
			s.Skipped++
			a.logger.WarnContext(ctx, "Skipping transaction with unparsable date",
				log.FieldTransactionID, tx.ID,
				log.FieldRawDate, tx.Date)
			continue
		}
		if !rng.Contains(day) {
			continue
		}
		switch tx.Kind {
		case core.Expense:
			byCat[tx.Category] = byCat[tx.Category].Add(tx.Amount)
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		}
	}

	s.ByCategory = make([]core.CategoryTotal, 0, len(byCat))
	for cat, total := range byCat {
		s.ByCategory = append(s.ByCategory, core.CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		return s.ByCategory[i].Category < s.ByCategory[j].Category
	})
	for _, ct := range s.ByCategory {
		s.TotalExpense = s.TotalExpense.Add(ct.Total)
	}

	return s
}

// Totals sums every transaction regardless of date. Unparsable dates are
// skipped here as well so the all-time figures agree with the period ones.
func (a *Aggregator) Totals(txs []core.Transaction) core.Totals {
	t := core.Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, tx := range txs {
		if _, err := tx.Day(); err != nil {
			continue
		}
		switch tx.Kind {
		case core.Expense:
			t.Expense = t.Expense.Add(tx.Amount)
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// RecentByCategory returns up to n of the newest in-range expenses of each
// category, newest first. Ties on the date keep input order.
func (a *Aggregator) RecentByCategory(txs []core.Transaction, rng DateRange, n int) map[string][]core.Transaction {
	type dated struct {
		tx  core.Transaction
		day civil.Date
	}
	groups := make(map[string][]dated)
	for _, tx := range txs {
		if tx.Kind != core.Expense {
			continue
		}
		day, err := tx.Day()
		if err != nil || !rng.Contains(day) {
			continue
		}
		groups[tx.Category] = append(groups[tx.Category], dated{tx: tx, day: day})
	}

	out := make(map[string][]core.Transaction, len(groups))
	for cat, items := range groups {
		sort.SliceStable(items, func(i, j int) bool { return items[i].day.After(items[j].day) })
		if len(items) > n {
			items = items[:n]
		}
		list := make([]core.Transaction, len(items))
		for i, it := range items {
			list[i] = it.tx
		}
		out[cat] = list
	}
	return out
}
