package cache

import (
	"strings"
	"time"

	"pennypal/internal/core"
)

// ViewKey identifies one computed view. Day and Fingerprint make an entry
// stale as soon as the date rolls over or the ledger content changes, so
// entries never need explicit invalidation.
type ViewKey struct {
	UserID      string
	Period      core.Period
	Currency    string
	Day         string
	Fingerprint string
}

func (k ViewKey) String() string {
	return strings.Join([]string{k.UserID, string(k.Period), strings.ToUpper(k.Currency), k.Day, k.Fingerprint}, "|")
}

// ViewCache caches values of type V by ViewKey.
type ViewCache[V any] struct {
	lru *LRUCache[V]
}

func NewViewCache[V any](size int, ttl time.Duration) *ViewCache[V] {
	return &ViewCache[V]{lru: NewLRUCache[V](size, ttl)}
}

func (c *ViewCache[V]) Get(k ViewKey) (V, bool) { return c.lru.Get(k.String()) }
func (c *ViewCache[V]) Set(k ViewKey, v V)      { c.lru.Set(k.String(), v) }
func (c *ViewCache[V]) CleanExpired() int      { return c.lru.CleanExpired() }
func (c *ViewCache[V]) Size() int              { return c.lru.Size() }
func (c *ViewCache[V]) Stats() (uint64, uint64) { return c.lru.Stats() }
