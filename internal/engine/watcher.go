package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pennypal/internal/core"
	"pennypal/internal/ledger"
	"pennypal/internal/log"
	"pennypal/internal/services"
)

var ErrWatcherClosed = errors.New("watcher closed")

type selection struct {
	period   core.Period
	currency string
}

// Watcher keeps a View up to date for one session. A single goroutine owns
// the session state and performs every recomputation; callers talk to it
// through channels.
type Watcher struct {
	engine  *Engine
	sub     ledger.Subscription
	views   chan View
	changes chan selection
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
}

// Watch subscribes to the user's ledger and recomputes the view on every
// snapshot, selection change and local midnight. The first view is computed
// from the initial snapshot.
func (e *Engine) Watch(ctx context.Context, sess core.Session, period core.Period) (*Watcher, error) {
	if err := e.check(sess, period); err != nil {
		return nil, err
	}
	sub, err := e.store.Subscribe(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		engine:  e,
		sub:     sub,
		views:   make(chan View, 1),
		changes: make(chan selection),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.run(ctx, sess, period)

	e.logger.DebugContext(ctx, "Watcher started",
		log.NewFields().WithSelection(sess.UserID, string(period), sess.DisplayCurrency).ToSlice()...)
	return w, nil
}

// Views delivers recomputed views. At most one is pending; an undelivered
// view is replaced by a newer one. The channel is closed when the watcher stops.
func (w *Watcher) Views() <-chan View { return w.views }

// Done is closed once the watcher has stopped and released its subscription.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// SetPeriod switches the period selector.
func (w *Watcher) SetPeriod(p core.Period) error {
	if _, err := services.GetPeriodResolver(p); err != nil {
		return err
	}
	return w.send(selection{period: p})
}

// SetCurrency switches the display currency. Unknown codes are rejected here
// and leave the current selection untouched.
func (w *Watcher) SetCurrency(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := w.engine.rates.Validate(code); err != nil {
		return err
	}
	return w.send(selection{currency: code})
}

func (w *Watcher) send(s selection) error {
	select {
	case w.changes <- s:
		return nil
	case <-w.done:
		return ErrWatcherClosed
	}
}

// Close stops the watcher and waits until no further recomputation can happen.
func (w *Watcher) Close() error {
	w.closeOnce.Do(w.cancel)
	<-w.done
	return nil
}

func (w *Watcher) run(ctx context.Context, sess core.Session, period core.Period) {
	defer func() {
		_ = w.sub.Close()
		close(w.views)
		close(w.done)
	}()

	e := w.engine
	var (
		snap ledger.Snapshot
		have bool
	)
	midnight := time.NewTimer(untilMidnight(e.now()))
	defer midnight.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case s, ok := <-w.sub.Snapshots():
			if !ok {
				return
			}
			snap, have = s, true

		case sel := <-w.changes:
			if sel.period != "" {
				period = sel.period
			}
			if sel.currency != "" {
				sess.DisplayCurrency = sel.currency
			}

		case <-midnight.C:
			midnight.Reset(untilMidnight(e.now()))
		}

		if !have || ctx.Err() != nil {
			continue
		}
		view, err := e.Compute(ctx, sess, period, snap)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to compute view",
				log.FieldUserID, sess.UserID,
				log.FieldError, err)
			continue
		}
		w.publish(view)
	}
}

// publish is only called from run, so the drain-then-send cannot block.
func (w *Watcher) publish(v View) {
	select {
	case <-w.views:
	default:
	}
	w.views <- v
}

func untilMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now) + time.Millisecond
}
