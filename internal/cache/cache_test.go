package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"pennypal/internal/core"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLRU(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	_, _ = c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestLRU(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", "3")
	clk.t = clk.t.Add(45 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	clk.t = clk.t.Add(time.Hour)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestLRUDelete(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("a", "1")
	c.Delete("a")
	c.Delete("missing")
	assert.Equal(t, 0, c.Size())
}

func TestViewKey(t *testing.T) {
	tests := []struct {
		name string
		a, b ViewKey
		same bool
	}{
		{
			name: "currency case folds",
			a:    ViewKey{UserID: "u1", Period: core.Monthly, Currency: "usd", Day: "2024-06-02", Fingerprint: "f"},
			b:    ViewKey{UserID: "u1", Period: core.Monthly, Currency: "USD", Day: "2024-06-02", Fingerprint: "f"},
			same: true,
		},
		{
			name: "day change",
			a:    ViewKey{UserID: "u1", Period: core.Monthly, Currency: "ZAR", Day: "2024-06-02", Fingerprint: "f"},
			b:    ViewKey{UserID: "u1", Period: core.Monthly, Currency: "ZAR", Day: "2024-06-03", Fingerprint: "f"},
		},
		{
			name: "content change",
			a:    ViewKey{UserID: "u1", Period: core.Weekly, Currency: "ZAR", Day: "2024-06-02", Fingerprint: "f1"},
			b:    ViewKey{UserID: "u1", Period: core.Weekly, Currency: "ZAR", Day: "2024-06-02", Fingerprint: "f2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, tt.a.String() == tt.b.String())
		})
	}
}

func TestManagerSweep(t *testing.T) {
	c, clk := newTestLRU(10, time.Second)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.t = clk.t.Add(time.Minute)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 2, m.Sweep())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, m.Run(ctx, time.Millisecond))
}
