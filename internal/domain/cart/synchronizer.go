// internal/domain/cart/synchronizer.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// API is the slice of the commerce service consumed by the synchronizer.
// Every call returns the full resulting cart.
type API interface {
	FetchCart(ctx context.Context) (Snapshot, error)
	AddItem(ctx context.Context, req AddRequest) (Snapshot, error)
	UpdateItem(ctx context.Context, lineID uint, quantity int) (Snapshot, error)
	RemoveItem(ctx context.Context, lineID uint) (Snapshot, error)
	ClearCart(ctx context.Context) (Snapshot, error)
}

// ErrInvalidQuantity rejects add requests below one unit
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// EventKind classifies snapshot change notifications
type EventKind int

const (
	// EventReplaced fires on every successful snapshot replace
	EventReplaced EventKind = iota
	// EventItemAdded fires when an add succeeded; presentation uses it
	// for incidental feedback such as a confirmation notice
	EventItemAdded
	// EventCleared fires when the cart was emptied
	EventCleared
)

// Event carries the snapshot that resulted from a successful operation
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}

// Synchronizer owns the in-memory mirror of the remote cart. Every
// mutation is a round trip to the service followed by a wholesale
// replace of the local snapshot; nothing is guessed optimistically.
//
// Mutations are serialized through a FIFO queue with a single worker so
// the last-issued mutation's response is the one ultimately reflected,
// regardless of network reordering. A quantity update still queued for
// the same line is superseded in place by a newer one; both callers
// receive the final outcome.
type Synchronizer struct {
	api    API
	logger *logrus.Entry

	mu       sync.RWMutex
	snapshot Snapshot
	subs     map[int]func(Event)
	nextSub  int

	queueMu sync.Mutex
	queue   []*mutation
	active  bool
}

type outcome struct {
	snapshot Snapshot
	err      error
}

type mutation struct {
	// supersedeKey marks queued-but-unsent entries that a newer mutation
	// may replace; empty means never superseded.
	supersedeKey string
	kind         EventKind
	call         func(ctx context.Context) (Snapshot, error)
	ctx          context.Context
	waiters      []chan outcome
}

// NewSynchronizer creates a cart synchronizer starting from the empty cart
func NewSynchronizer(api API, logger *logrus.Entry) *Synchronizer {
	return &Synchronizer{
		api:      api,
		logger:   logger,
		snapshot: EmptySnapshot(),
		subs:     make(map[int]func(Event)),
	}
}

// Snapshot returns the current cart mirror
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Subscribe registers a change listener and returns an unsubscribe func.
// Views read snapshots and re-render on notification; they never poll.
func (s *Synchronizer) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Fetch loads the current cart at session start. On failure the mirror
// stays at its empty default and the error is reported as non-fatal: the
// cart renders as empty, not as an error screen. No automatic retry.
func (s *Synchronizer) Fetch(ctx context.Context) (Snapshot, error) {
	snap, err := s.run(ctx, &mutation{
		kind: EventReplaced,
		call: s.api.FetchCart,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Cart fetch failed, keeping empty cart")
		return s.Snapshot(), fmt.Errorf("failed to fetch cart: %w", err)
	}
	return snap, nil
}

// AddItem adds a product to the cart. Quantity must be at least 1; the
// service validates product, size and stock and returns the grown cart.
func (s *Synchronizer) AddItem(ctx context.Context, productID uint, quantity int, sizeID *uint) (Snapshot, error) {
	if quantity < 1 {
		return s.Snapshot(), ErrInvalidQuantity
	}

	req := AddRequest{ProductID: productID, Quantity: quantity, ProductSizeID: sizeID}
	return s.run(ctx, &mutation{
		kind: EventItemAdded,
		call: func(ctx context.Context) (Snapshot, error) {
			return s.api.AddItem(ctx, req)
		},
	})
}

// UpdateQuantity sets a line's quantity. Values below 1 are a local
// no-op with no remote call; removal must use RemoveItem explicitly.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, lineID uint, quantity int) (Snapshot, error) {
	if quantity < 1 {
		return s.Snapshot(), nil
	}

	return s.run(ctx, &mutation{
		supersedeKey: fmt.Sprintf("update:%d", lineID),
		kind:         EventReplaced,
		call: func(ctx context.Context) (Snapshot, error) {
			return s.api.UpdateItem(ctx, lineID, quantity)
		},
	})
}

// RemoveItem deletes a line. Removing an already-removed line converges
// on the same snapshot instead of surfacing an error: a NotFound from
// the service degrades to a plain re-fetch.
func (s *Synchronizer) RemoveItem(ctx context.Context, lineID uint) (Snapshot, error) {
	return s.run(ctx, &mutation{
		kind: EventReplaced,
		call: func(ctx context.Context) (Snapshot, error) {
			snap, err := s.api.RemoveItem(ctx, lineID)
			if err != nil && isNotFound(err) {
				s.logger.WithField("line_id", lineID).Debug("Line already removed, refreshing cart")
				return s.api.FetchCart(ctx)
			}
			return snap, err
		},
	})
}

// Clear empties the cart remotely and locally. Used after a successful
// checkout or an explicit user action.
func (s *Synchronizer) Clear(ctx context.Context) (Snapshot, error) {
	return s.run(ctx, &mutation{
		kind: EventCleared,
		call: s.api.ClearCart,
	})
}

// run enqueues a mutation and waits for its outcome. The caller's
// context cancels the wait, not the mutation itself: once queued, the
// request still reaches the server so the mirror cannot silently diverge.
func (s *Synchronizer) run(ctx context.Context, m *mutation) (Snapshot, error) {
	m.ctx = ctx
	ch := make(chan outcome, 1)
	m.waiters = append(m.waiters, ch)

	s.queueMu.Lock()
	if m.supersedeKey != "" {
		for _, queued := range s.queue {
			if queued.supersedeKey == m.supersedeKey {
				// Replace the unsent request in place and share its slot
				queued.call = m.call
				queued.ctx = m.ctx
				queued.waiters = append(queued.waiters, ch)
				s.queueMu.Unlock()
				return s.wait(ctx, ch)
			}
		}
	}
	s.queue = append(s.queue, m)
	if !s.active {
		s.active = true
		go s.work()
	}
	s.queueMu.Unlock()

	return s.wait(ctx, ch)
}

func (s *Synchronizer) wait(ctx context.Context, ch chan outcome) (Snapshot, error) {
	select {
	case out := <-ch:
		if out.err != nil {
			return s.Snapshot(), out.err
		}
		return out.snapshot, nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// work drains the queue one mutation at a time
func (s *Synchronizer) work() {
	for {
		s.queueMu.Lock()
		if len(s.queue) == 0 {
			s.active = false
			s.queueMu.Unlock()
			return
		}
		m := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		snap, err := m.call(m.ctx)
		if err == nil {
			s.commit(snap, m.kind)
		} else {
			s.logger.WithError(err).Debug("Cart mutation failed, snapshot unchanged")
		}

		out := outcome{snapshot: snap, err: err}
		for _, ch := range m.waiters {
			ch <- out
		}
	}
}

// commit replaces the mirror and notifies subscribers
func (s *Synchronizer) commit(snap Snapshot, kind EventKind) {
	if snap.Items == nil {
		snap.Items = []Line{}
	}

	s.mu.Lock()
	s.snapshot = snap
	listeners := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	event := Event{Kind: kind, Snapshot: snap}
	for _, fn := range listeners {
		fn(event)
	}
}

// isNotFound checks for the service's not-found error without binding
// this package to the transport layer
func isNotFound(err error) bool {
	var nf interface{ NotFound() bool }
	return errors.As(err, &nf) && nf.NotFound()
}
