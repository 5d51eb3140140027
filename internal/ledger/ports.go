// Package ledger defines the ports between the engine and the stores that hold
// transactions, goals and badges, plus the subscription fan-out shared by all
// store implementations.
package ledger

import (
	"context"
	"hash/fnv"
	"sort"
	"strconv"
	"time"

	"pennypal/internal/core"
)

// Snapshot is the full state of one user's ledger at a point in time.
type Snapshot struct {
	UserID       string
	Transactions []core.Transaction
	Goal         *core.Goal // nil until the user saves one
	TakenAt      time.Time
}

// GoalOr returns the saved goal or def when none was saved.
func (s Snapshot) GoalOr(def core.Goal) core.Goal {
	if s.Goal == nil {
		return def
	}
	return *s.Goal
}

// Fingerprint is a content hash that changes whenever a transaction or the
// goal changes. TakenAt does not contribute.
func (s Snapshot) Fingerprint() string {
	txs := make([]core.Transaction, len(s.Transactions))
	copy(txs, s.Transactions)
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].ID != txs[j].ID {
			return txs[i].ID < txs[j].ID
		}
		return txs[i].Date < txs[j].Date
	})

	h := fnv.New64a()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.Write([]byte(p))
			_, _ = h.Write([]byte{0})
		}
	}
	write(s.UserID)
	for _, tx := range txs {
		write(tx.ID, tx.Date, tx.Amount.String(), tx.Category, string(tx.Kind), tx.Description)
	}
	if s.Goal != nil {
		write("goal", s.Goal.IncomeGoal.String(), s.Goal.SpendingLimit.String(), s.Goal.MinSpendingGoal.String())
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

type (
	// Store is the read side the engine consumes. Subscribe pushes a full
	// snapshot after the initial load and after every change.
	Store interface {
		Subscribe(ctx context.Context, userID string) (Subscription, error)
		Snapshot(ctx context.Context, userID string) (Snapshot, error)
	}

	// Subscription delivers snapshots until closed. Snapshots holds at most one
	// pending value; a newer snapshot replaces an undelivered older one.
	Subscription interface {
		Snapshots() <-chan Snapshot
		Close() error
	}

	// BadgeStore keeps awarded badges. CreateIfAbsent is an atomic conditional
	// write keyed by (userID, badge.ID).
	BadgeStore interface {
		CreateIfAbsent(ctx context.Context, userID string, badge core.Badge) (created bool, err error)
		ListBadges(ctx context.Context, userID string) ([]core.Badge, error)
	}

	// Writer is the write side used by the API and CLI. The engine never writes
	// transactions or goals.
	Writer interface {
		AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		SaveGoal(ctx context.Context, userID string, goal core.Goal) error
	}
)

// SortBadges orders badges by earned date, then id.
func SortBadges(bs []core.Badge) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].EarnedDateKey != bs[j].EarnedDateKey {
			return bs[i].EarnedDateKey < bs[j].EarnedDateKey
		}
		return bs[i].ID < bs[j].ID
	})
}
