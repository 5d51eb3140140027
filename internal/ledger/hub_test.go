package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"pennypal/internal/core"
)

type countingLoader struct {
	mu    sync.Mutex
	count map[string]int
	err   error
}

func (l *countingLoader) load(_ context.Context, userID string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return Snapshot{}, l.err
	}
	if l.count == nil {
		l.count = map[string]int{}
	}
	l.count[userID]++
	n := l.count[userID]
	txs := make([]core.Transaction, n)
	for i := range txs {
		txs[i] = core.Transaction{ID: string(rune('a' + i)), UserID: userID, Date: "2024-05-01", Kind: core.Income, Amount: decimal.NewFromInt(1)}
	}
	return Snapshot{UserID: userID, Transactions: txs, TakenAt: time.Now()}, nil
}

func receive(t *testing.T, sub Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		assert.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	return Snapshot{}
}

func TestHubSubscribeDeliversInitialSnapshot(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)

	sub, err := hub.Subscribe(context.Background(), "u1")
	assert.NoError(t, err)
	defer sub.Close()

	snap := receive(t, sub)
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, 1, len(snap.Transactions))
	assert.Equal(t, []string{"u1"}, hub.Users())
}

func TestHubNotifyLatestWins(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "u1")
	assert.NoError(t, err)
	defer sub.Close()

	// nobody reads in between: only the newest snapshot should be pending
	for i := 0; i < 3; i++ {
		assert.NoError(t, hub.Notify(ctx, "u1"))
	}
	snap := receive(t, sub)
	assert.Equal(t, 4, len(snap.Transactions))

	select {
	case <-sub.Snapshots():
		t.Fatal("expected no further snapshot")
	default:
	}
}

func TestHubNotifyOnlyTargetsUser(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	a, err := hub.Subscribe(ctx, "a")
	assert.NoError(t, err)
	defer a.Close()
	b, err := hub.Subscribe(ctx, "b")
	assert.NoError(t, err)
	defer b.Close()
	receive(t, a)
	receive(t, b)

	assert.NoError(t, hub.Notify(ctx, "a"))
	receive(t, a)
	select {
	case <-b.Snapshots():
		t.Fatal("b should not be notified")
	default:
	}

	// unsubscribed users are not loaded at all
	assert.NoError(t, hub.Notify(ctx, "nobody"))
	assert.Equal(t, 0, loader.count["nobody"])
}

func TestHubCloseSubscription(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, "u1")
	assert.NoError(t, err)
	receive(t, sub)

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
	assert.Equal(t, 0, len(hub.Users()))

	assert.NoError(t, hub.Notify(ctx, "u1"))
}

func TestHubSubscribeLoadError(t *testing.T) {
	boom := errors.New("boom")
	hub := NewHub((&countingLoader{err: boom}).load, nil)

	_, err := hub.Subscribe(context.Background(), "u1")
	assert.IsError(t, err, boom)
	assert.Equal(t, 0, len(hub.Users()))
}

func TestHubClose(t *testing.T) {
	hub := NewHub((&countingLoader{}).load, nil)
	sub, err := hub.Subscribe(context.Background(), "u1")
	assert.NoError(t, err)
	receive(t, sub)

	hub.Close()
	_, ok := <-sub.Snapshots()
	assert.False(t, ok)

	_, err = hub.Subscribe(context.Background(), "u1")
	assert.IsError(t, err, ErrHubClosed)
}

func TestSnapshotFingerprint(t *testing.T) {
	tx := core.Transaction{ID: "1", Date: "2024-05-01", Kind: core.Expense, Category: "Food", Amount: decimal.NewFromInt(10)}
	a := Snapshot{UserID: "u1", Transactions: []core.Transaction{tx}}
	b := Snapshot{UserID: "u1", Transactions: []core.Transaction{tx}, TakenAt: time.Now()}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	changed := tx
	changed.Amount = decimal.NewFromInt(11)
	c := Snapshot{UserID: "u1", Transactions: []core.Transaction{changed}}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	goal := core.DefaultGoal(decimal.NewFromInt(20000))
	d := Snapshot{UserID: "u1", Transactions: []core.Transaction{tx}, Goal: &goal}
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestSnapshotGoalOr(t *testing.T) {
	def := core.DefaultGoal(decimal.NewFromInt(20000))
	assert.Equal(t, "20000", Snapshot{}.GoalOr(def).SpendingLimit.String())

	saved := core.Goal{SpendingLimit: decimal.NewFromInt(5000)}
	assert.Equal(t, "5000", Snapshot{Goal: &saved}.GoalOr(def).SpendingLimit.String())
}

func TestHubPublish(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)

	sub, err := hub.Subscribe(context.Background(), "u1")
	assert.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	hub.Publish(Snapshot{UserID: "u1", Transactions: []core.Transaction{{ID: "x"}}})
	hub.Publish(Snapshot{UserID: "u2"})
	snap := receive(t, sub)
	assert.Equal(t, "x", snap.Transactions[0].ID)
	assert.Equal(t, 1, loader.count["u1"])
}
