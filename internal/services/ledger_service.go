package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pennypal/internal/amqp"
	"pennypal/internal/core"
	"pennypal/internal/currency"
	"pennypal/internal/ledger"
	"pennypal/internal/log"
)

// ChangePublisher announces ledger changes to other processes.
type ChangePublisher interface {
	PublishLedgerChanged(ctx context.Context, userID, reason string) error
}

// TransactionInput is a transaction as entered by the user, amount in Currency.
type TransactionInput struct {
	UserID      string
	Date        string // yyyy-mm-dd, defaults to today
	Kind        string
	Category    string
	Amount      string
	Currency    string
	Description string
}

// GoalInput is a goal as entered by the user, amounts in Currency. Empty
// amounts mean zero.
type GoalInput struct {
	IncomeGoal      string
	SpendingLimit   string
	MinSpendingGoal string
	Currency        string
}

// LedgerService converts entered amounts to the base currency, writes them
// and announces the change.
type LedgerService struct {
	writer    ledger.Writer
	publisher ChangePublisher
	rates     *currency.Table
	logger    *log.Logger
	now       func() time.Time
}

func NewLedgerService(writer ledger.Writer, publisher ChangePublisher, rates *currency.Table, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		writer:    writer,
		publisher: publisher,
		rates:     rates,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
	}
}

// AddTransaction stores the transaction and publishes a change message.
// A failed publish is logged, not returned: the write already succeeded.
func (s *LedgerService) AddTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	kind, err := core.ParseKind(in.Kind)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	base, err := s.toBase(amount, in.Currency)
	if err != nil {
		return core.Transaction{}, err
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.now().Format(core.DateLayout)
	}

	tx := core.Transaction{
		UserID:      strings.TrimSpace(in.UserID),
		Date:        date,
		Amount:      base,
		Kind:        kind,
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
	}
	if kind == core.Income {
		tx.Category = ""
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.writer.AddTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, saved.UserID, amqp.ReasonTransactionAdded)
	return saved, nil
}

// SaveGoal replaces the user's goal and publishes a change message.
func (s *LedgerService) SaveGoal(ctx context.Context, userID string, in GoalInput) (core.Goal, error) {
	var goal core.Goal
	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{{&goal.IncomeGoal, in.IncomeGoal}, {&goal.SpendingLimit, in.SpendingLimit}, {&goal.MinSpendingGoal, in.MinSpendingGoal}} {
		v, err := parseGoalAmount(f.raw)
		if err != nil {
			return core.Goal{}, err
		}
		if *f.dst, err = s.toBase(v, in.Currency); err != nil {
			return core.Goal{}, err
		}
	}
	if err := goal.Validate(); err != nil {
		return core.Goal{}, err
	}

	if err := s.writer.SaveGoal(ctx, userID, goal); err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	s.publish(ctx, userID, amqp.ReasonGoalSaved)
	return goal, nil
}

func (s *LedgerService) toBase(amount decimal.Decimal, from string) (decimal.Decimal, error) {
	if strings.TrimSpace(from) == "" {
		return amount, nil
	}
	return s.rates.ToBase(amount, from)
}

func (s *LedgerService) publish(ctx context.Context, userID, reason string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChanged(ctx, userID, reason); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldUserID, userID,
			log.FieldError, err)
	}
}

// parseGoalAmount accepts zero and blank, unlike transaction amounts.
func parseGoalAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	if d, err := core.ParseAmount(raw); err == nil {
		return d, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Zero, core.ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, core.ErrNegativeGoal
	}
	return d, nil
}
