package core

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// DateLayout is the stored form of a transaction date.
const DateLayout = "2006-01-02"

const maxDescriptionLen = 200

type (
	// Kind tells incomes from expenses.
	Kind string

	// Transaction is one ledger record. Amount is always in the base currency.
	// Date is kept as stored so that malformed records can be skipped at
	// aggregation time instead of being rejected at load time.
	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Date        string          `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category,omitempty"`
		Kind        Kind            `json:"kind"`
		Description string          `json:"description,omitempty"`
	}

	// Goal is the user's spending goal, amounts in base currency.
	Goal struct {
		IncomeGoal      decimal.Decimal `json:"incomeGoal"`
		SpendingLimit   decimal.Decimal `json:"spendingLimit"`
		MinSpendingGoal decimal.Decimal `json:"minSpendingGoal"`
	}

	// Session is the explicit per-call context: who is asking and in which currency.
	Session struct {
		UserID          string
		DisplayCurrency string
	}
)

var (
	ErrEmptyUser       = errors.New("empty user id")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKind     = errors.New("invalid transaction kind")
	ErrEmptyCategory   = errors.New("empty category")
	ErrNegativeGoal    = errors.New("goal amounts cannot be negative")
	ErrDescriptionLong = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrEmptyCurrency   = errors.New("empty display currency")
	ErrNotFound        = errors.New("not found")
	ErrReadOnlyBackend = errors.New("backend is read-only")
)

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool { return k == Income || k == Expense }

// Day parses the stored date. Records with unparsable dates fail here.
func (t Transaction) Day() (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(t.Date))
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, t.Date)
	}
	return d, nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if _, err := t.Day(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Kind == Expense && strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

// DefaultGoal is used until the user saves one: no minimum and the given limit.
func DefaultGoal(spendingLimit decimal.Decimal) Goal {
	return Goal{SpendingLimit: spendingLimit}
}

func (g Goal) Validate() error {
	if g.IncomeGoal.IsNegative() || g.SpendingLimit.IsNegative() || g.MinSpendingGoal.IsNegative() {
		return ErrNegativeGoal
	}
	return nil
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(s.DisplayCurrency) == "" {
		return ErrEmptyCurrency
	}
	return nil
}
