// Package memory is a map-backed ledger and badge store. When created with a
// directory it seeds each user from <dir>/<user>.json, writes changes back to
// that file and, while Watch runs, reloads files edited by hand.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"pennypal/internal/core"
	"pennypal/internal/ledger"
	"pennypal/internal/log"
)

const fileExt = ".json"

// userFile is the on-disk layout of one user.
type userFile struct {
	Transactions []core.Transaction `json:"transactions"`
	Goal         *core.Goal         `json:"goal,omitempty"`
	Badges       []core.Badge       `json:"badges,omitempty"`
}

type userData struct {
	txs    []core.Transaction
	goal   *core.Goal
	badges map[string]core.Badge
}

type Store struct {
	mu    sync.RWMutex
	users map[string]*userData
	dir   string

	// last bytes persisted per user; the watcher skips its own writes
	written map[string][]byte

	hub    *ledger.Hub
	logger *log.Logger
	now    func() time.Time
}

var (
	_ ledger.Store      = (*Store)(nil)
	_ ledger.BadgeStore = (*Store)(nil)
	_ ledger.Writer     = (*Store)(nil)
)

// New returns an empty store that keeps everything in memory.
func New(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{
		users:   make(map[string]*userData),
		written: make(map[string][]byte),
		logger:  logger.WithComponent(log.ComponentLedger),
		now:     time.Now,
	}
	s.hub = ledger.NewHub(s.Snapshot, logger)
	return s
}

// NewFromDir seeds the store from every <user>.json file in dir. A missing
// directory is created.
func NewFromDir(dir string, logger *log.Logger) (*Store, error) {
	s := New(logger)
	s.dir = dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		if _, err := s.loadFile(filepath.Join(dir, e.Name())); err != nil {
			return nil, err
		}
	}
	s.logger.Info("Memory ledger seeded", "directory", dir, log.FieldCount, len(s.users))
	return s, nil
}

func userFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), fileExt)
}

// loadFile reads path and swaps it in under s.mu, so a concurrent write
// cannot be overwritten by an older copy of the file. It reports false when
// the file holds exactly what this store last wrote.
func (s *Store) loadFile(path string) (bool, error) {
	user := userFromPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if last, ok := s.written[user]; ok && bytes.Equal(last, raw) {
		return false, nil
	}
	var f userFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}

	data := &userData{goal: f.Goal, badges: make(map[string]core.Badge, len(f.Badges))}
	for _, tx := range f.Transactions {
		tx.UserID = user
		data.txs = append(data.txs, tx)
	}
	for _, b := range f.Badges {
		data.badges[b.ID] = b
	}
	s.users[user] = data
	delete(s.written, user)
	return true, nil
}

// persist writes user's data back to its file. Callers hold s.mu.
func (s *Store) persist(user string) error {
	if s.dir == "" {
		return nil
	}
	data := s.users[user]
	f := userFile{Transactions: data.txs, Goal: data.goal, Badges: sortedBadges(data.badges)}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	path := filepath.Join(s.dir, user+fileExt)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	s.written[user] = raw
	return nil
}

func (s *Store) user(id string) *userData {
	d, ok := s.users[id]
	if !ok {
		d = &userData{badges: make(map[string]core.Badge)}
		s.users[id] = d
	}
	return d
}

func (s *Store) Snapshot(_ context.Context, userID string) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := ledger.Snapshot{UserID: userID, TakenAt: s.now()}
	if d, ok := s.users[userID]; ok {
		snap.Transactions = append([]core.Transaction(nil), d.txs...)
		if d.goal != nil {
			g := *d.goal
			snap.Goal = &g
		}
	}
	return snap, nil
}

func (s *Store) Subscribe(ctx context.Context, userID string) (ledger.Subscription, error) {
	return s.hub.Subscribe(ctx, userID)
}

func (s *Store) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	d := s.user(tx.UserID)
	d.txs = append(d.txs, tx)
	err := s.persist(tx.UserID)
	s.mu.Unlock()
	if err != nil {
		return core.Transaction{}, err
	}

	_ = s.hub.Notify(ctx, tx.UserID)
	return tx, nil
}

func (s *Store) SaveGoal(ctx context.Context, userID string, goal core.Goal) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if err := goal.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.user(userID).goal = &goal
	err := s.persist(userID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	_ = s.hub.Notify(ctx, userID)
	return nil
}

// CreateIfAbsent checks and inserts under one lock.
func (s *Store) CreateIfAbsent(_ context.Context, userID string, badge core.Badge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.user(userID)
	if _, ok := d.badges[badge.ID]; ok {
		return false, nil
	}
	d.badges[badge.ID] = badge
	if err := s.persist(userID); err != nil {
		delete(d.badges, badge.ID)
		return false, err
	}
	return true, nil
}

func (s *Store) ListBadges(_ context.Context, userID string) ([]core.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.users[userID]
	if !ok {
		return []core.Badge{}, nil
	}
	return sortedBadges(d.badges), nil
}

// Users lists every user with data.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	return out
}

// Refresh pushes a fresh snapshot of userID to its subscribers.
func (s *Store) Refresh(ctx context.Context, userID string) error {
	return s.hub.Notify(ctx, userID)
}

// Close ends every open subscription.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

// Watch reloads user files changed on disk and notifies their subscribers.
// It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	if s.dir == "" {
		return errors.New("memory store has no data directory to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.logger.InfoContext(ctx, "Watching data directory", "directory", s.dir)

	// editors write files in several steps
	const debounce = 100 * time.Millisecond
	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != fileExt {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(debounce)

		case <-timer.C:
			for path := range pending {
				s.reload(ctx, path)
			}
			clear(pending)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WarnContext(ctx, "File watcher error", log.FieldError, err)
		}
	}
}

func (s *Store) reload(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	changed, err := s.loadFile(path)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to reload ledger file", "path", path, log.FieldError, err)
		return
	}
	if !changed {
		return
	}
	user := userFromPath(path)
	s.logger.DebugContext(ctx, "Ledger file reloaded", log.FieldUserID, user)
	_ = s.hub.Notify(ctx, user)
}

func sortedBadges(m map[string]core.Badge) []core.Badge {
	out := make([]core.Badge, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	ledger.SortBadges(out)
	return out
}
