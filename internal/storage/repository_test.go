package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"pennypal/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "pennypal.db"), nil)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", Postgres.rebind(q))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pennypal.db")
	first, err := NewSQLiteRepository(path, nil)
	assert.NoError(t, err)
	assert.NoError(t, first.Close())

	second, err := NewSQLiteRepository(path, nil)
	assert.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestTransactionsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.AddTransaction(ctx, core.Transaction{
		UserID:      "u1",
		Date:        "2024-06-01",
		Kind:        core.Expense,
		Category:    "Food",
		Amount:      decimal.RequireFromString("12.34"),
		Description: "lunch",
	})
	assert.NoError(t, err)
	assert.NotEqual(t, "", saved.ID)

	_, err = repo.AddTransaction(ctx, core.Transaction{UserID: "u1", Date: "2024-05-31", Kind: core.Income, Amount: decimal.NewFromInt(500)})
	assert.NoError(t, err)

	_, err = repo.AddTransaction(ctx, core.Transaction{UserID: "u1", Date: "2024-05-31", Kind: core.Expense, Amount: decimal.NewFromInt(5)})
	assert.IsError(t, err, core.ErrEmptyCategory)

	snap, err := repo.Snapshot(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(snap.Transactions))
	assert.Equal(t, "2024-05-31", snap.Transactions[0].Date)
	assert.Equal(t, "12.34", snap.Transactions[1].Amount.String())
	assert.Equal(t, "lunch", snap.Transactions[1].Description)
	assert.Zero(t, snap.Goal)

	other, err := repo.Snapshot(ctx, "u2")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(other.Transactions))
}

func TestSaveGoalLastWriteWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assert.NoError(t, repo.SaveGoal(ctx, "u1", core.Goal{SpendingLimit: decimal.NewFromInt(1000), MinSpendingGoal: decimal.NewFromInt(200)}))
	assert.NoError(t, repo.SaveGoal(ctx, "u1", core.Goal{IncomeGoal: decimal.NewFromInt(3000), SpendingLimit: decimal.NewFromInt(1500)}))

	snap, err := repo.Snapshot(ctx, "u1")
	assert.NoError(t, err)
	assert.NotZero(t, snap.Goal)
	assert.Equal(t, "1500", snap.Goal.SpendingLimit.String())
	assert.Equal(t, "0", snap.Goal.MinSpendingGoal.String())
	assert.Equal(t, "3000", snap.Goal.IncomeGoal.String())

	assert.IsError(t, repo.SaveGoal(ctx, "", core.Goal{}), core.ErrEmptyUser)
}

func TestCreateIfAbsent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	badge := core.Badge{
		ID:            "budget_keeper_2024-06",
		Type:          core.BudgetKeeper,
		Title:         "Budget Keeper!",
		Description:   "You stayed under your spending limit for the period.",
		EarnedDateKey: "2024-06-15",
		PeriodKey:     "2024-06",
	}

	created, err := repo.CreateIfAbsent(ctx, "u1", badge)
	assert.NoError(t, err)
	assert.True(t, created)

	again := badge
	again.EarnedDateKey = "2024-06-20"
	created, err = repo.CreateIfAbsent(ctx, "u1", again)
	assert.NoError(t, err)
	assert.False(t, created)

	badges, err := repo.ListBadges(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, []core.Badge{badge}, badges)

	none, err := repo.ListBadges(ctx, "u2")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(none))
}

func TestCreateIfAbsentConcurrent(t *testing.T) {
	repo := newTestRepo(t)
	badge := core.Badge{ID: "savings_star_2024", Type: core.SavingsStar, PeriodKey: "2024"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.CreateIfAbsent(context.Background(), "u1", badge)
			if err == nil && ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestSubscribeAndRefresh(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub, err := repo.Subscribe(ctx, "u1")
	assert.NoError(t, err)
	defer sub.Close()

	select {
	case snap := <-sub.Snapshots():
		assert.Equal(t, 0, len(snap.Transactions))
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err = repo.AddTransaction(ctx, core.Transaction{UserID: "u1", Date: "2024-06-01", Kind: core.Income, Amount: decimal.NewFromInt(10)})
	assert.NoError(t, err)

	select {
	case snap := <-sub.Snapshots():
		assert.Equal(t, 1, len(snap.Transactions))
	case <-time.After(time.Second):
		t.Fatal("no snapshot after write")
	}

	assert.NoError(t, repo.Refresh(ctx, "u1"))
	select {
	case snap := <-sub.Snapshots():
		assert.Equal(t, 1, len(snap.Transactions))
	case <-time.After(time.Second):
		t.Fatal("no snapshot after refresh")
	}
}

func TestUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.AddTransaction(ctx, core.Transaction{UserID: "bob", Date: "2024-06-01", Kind: core.Income, Amount: decimal.NewFromInt(1)})
	assert.NoError(t, err)
	assert.NoError(t, repo.SaveGoal(ctx, "alice", core.Goal{}))

	users, err := repo.Users(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}
