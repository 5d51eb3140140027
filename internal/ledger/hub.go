package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"pennypal/internal/log"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("ledger hub closed")

// LoadFunc reads the current snapshot of one user.
type LoadFunc func(ctx context.Context, userID string) (Snapshot, error)

// Hub fans snapshots out to the subscribers of each user. Stores embed it and
// call Notify after every change they observe.
type Hub struct {
	load   LoadFunc
	logger *log.Logger
	seq    atomic.Uint64

	mu     sync.Mutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

func NewHub(load LoadFunc, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		load:   load,
		logger: logger.WithComponent(log.ComponentLedger),
		subs:   make(map[string]map[*subscription]struct{}),
	}
}

// Subscribe registers a subscriber and delivers the initial snapshot.
func (h *Hub) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	sub := &subscription{hub: h, userID: userID, ch: make(chan Snapshot, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	// registered before loading so that a change racing the initial load is not lost
	seq := h.seq.Add(1)
	snap, err := h.load(ctx, userID)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	sub.offer(seq, snap)

	h.logger.DebugContext(ctx, "Subscriber registered", log.FieldUserID, userID)
	return sub, nil
}

// Notify reloads userID's snapshot and pushes it to its subscribers. It is a
// no-op when nobody is subscribed.
func (h *Hub) Notify(ctx context.Context, userID string) error {
	subs := h.subscribers(userID)
	if len(subs) == 0 {
		return nil
	}
	seq := h.seq.Add(1)
	snap, err := h.load(ctx, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to reload snapshot", log.FieldUserID, userID, log.FieldError, err)
		return err
	}
	for _, s := range subs {
		s.offer(seq, snap)
	}
	return nil
}

// Publish pushes an already loaded snapshot to the subscribers of its user.
// Stores that read many users at once use it to avoid a second load.
func (h *Hub) Publish(snap Snapshot) {
	seq := h.seq.Add(1)
	for _, s := range h.subscribers(snap.UserID) {
		s.offer(seq, snap)
	}
}

// Users lists the users that currently have subscribers.
func (h *Hub) Users() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	users := make([]string, 0, len(h.subs))
	for u := range h.subs {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Close closes every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
}

func (h *Hub) subscribers(userID string) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscription, 0, len(h.subs[userID]))
	for s := range h.subs[userID] {
		out = append(out, s)
	}
	return out
}

func (h *Hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.userID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.userID)
	}
}

type subscription struct {
	hub    *Hub
	userID string
	ch     chan Snapshot

	mu      sync.Mutex
	lastSeq uint64
	closed  bool
}

func (s *subscription) Snapshots() <-chan Snapshot { return s.ch }

// offer replaces any undelivered snapshot. Snapshots whose load started
// before the last delivered one are dropped.
func (s *subscription) offer(seq uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq < s.lastSeq {
		return
	}
	s.lastSeq = seq
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.hub.remove(s)
	return nil
}
