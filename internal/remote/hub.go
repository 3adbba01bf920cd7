package remote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives collection snapshots.
type Handler func(Snapshot)

// Bus carries change notifications between server instances that share one
// store. Every instance, including the publisher, must call Hub.Refresh for
// each notification it receives.
type Bus interface {
	Publish(ctx context.Context, collection string) error
}

// Hub wraps a Store and delivers a fresh snapshot of a collection to its
// subscribers after every committed write made through the hub.
type Hub struct {
	Store

	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
	bus  Bus

	// refreshMu orders refreshes so the last delivered snapshot is never
	// older than one delivered before it.
	refreshMu sync.Mutex
}

// NewHub wraps store.
func NewHub(store Store) *Hub {
	return &Hub{
		Store: store,
		subs:  make(map[string]map[*subscription]struct{}),
	}
}

// SetBus routes change notifications through bus instead of refreshing
// local subscribers directly.
func (h *Hub) SetBus(bus Bus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bus = bus
}

// Subscribe registers handler for collection. The handler is called with the
// current snapshot and then after every change, from a goroutine owned by the
// subscription; deliveries are coalesced so a slow handler only sees the
// latest snapshot. The returned cancel function must be called when the
// subscriber goes away; it is safe to call more than once.
func (h *Hub) Subscribe(ctx context.Context, collection string, handler Handler) (func(), error) {
	sub := &subscription{
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[*subscription]struct{})
	}
	h.subs[collection][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[collection], sub)
			if len(h.subs[collection]) == 0 {
				delete(h.subs, collection)
			}
			h.mu.Unlock()
			close(sub.done)
		})
	}

	h.refreshMu.Lock()
	snap, err := h.Store.List(ctx, collection)
	if err == nil {
		sub.deliver(snap)
	}
	h.refreshMu.Unlock()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribing to %s: %w", collection, err)
	}

	go sub.run()
	return cancel, nil
}

// Subscribers returns the number of live subscriptions on collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

// Refresh reads collection and delivers it to every local subscriber.
func (h *Hub) Refresh(ctx context.Context, collection string) error {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	subs := h.subscribers(collection)
	if len(subs) == 0 {
		return nil
	}

	snap, err := h.Store.List(ctx, collection)
	if err != nil {
		return fmt.Errorf("refreshing %s: %w", collection, err)
	}
	for _, s := range subs {
		s.deliver(snap)
	}
	return nil
}

func (h *Hub) subscribers(collection string) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]*subscription, 0, len(h.subs[collection]))
	for s := range h.subs[collection] {
		subs = append(subs, s)
	}
	return subs
}

// changed is called after a successful write to collection.
func (h *Hub) changed(ctx context.Context, collection string) {
	ctx = context.WithoutCancel(ctx)

	h.mu.Lock()
	bus := h.bus
	h.mu.Unlock()

	if bus != nil {
		err := bus.Publish(ctx, collection)
		if err == nil {
			return
		}
		slog.Error("failed to publish change, refreshing locally", "collection", collection, "error", err)
	}
	if err := h.Refresh(ctx, collection); err != nil {
		slog.Error("failed to refresh subscribers", "collection", collection, "error", err)
	}
}

// Set implements Store.
func (h *Hub) Set(ctx context.Context, path string, v any) error {
	if err := h.Store.Set(ctx, path, v); err != nil {
		return err
	}
	h.changedPath(ctx, path)
	return nil
}

// Update implements Store.
func (h *Hub) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := h.Store.Update(ctx, path, fields); err != nil {
		return err
	}
	h.changedPath(ctx, path)
	return nil
}

// Push implements Store.
func (h *Hub) Push(ctx context.Context, collection string, v any) (string, error) {
	key, err := h.Store.Push(ctx, collection, v)
	if err != nil {
		return "", err
	}
	h.changed(ctx, collection)
	return key, nil
}

// Delete implements Store.
func (h *Hub) Delete(ctx context.Context, path string) error {
	if err := h.Store.Delete(ctx, path); err != nil {
		return err
	}
	h.changedPath(ctx, path)
	return nil
}

// Transaction implements Store.
func (h *Hub) Transaction(ctx context.Context, path string, fn TransactionFunc) (TransactionResult, error) {
	res, err := h.Store.Transaction(ctx, path, fn)
	if err != nil || !res.Committed {
		return res, err
	}
	h.changedPath(ctx, path)
	return res, nil
}

func (h *Hub) changedPath(ctx context.Context, path string) {
	collection, _, err := Split(path)
	if err != nil {
		return
	}
	h.changed(ctx, collection)
}

type subscription struct {
	handler Handler
	once    sync.Once

	mu      sync.Mutex
	pending *Snapshot
	wake    chan struct{}
	done    chan struct{}
}

// deliver replaces any undelivered snapshot with snap.
func (s *subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			s.mu.Lock()
			snap := s.pending
			s.pending = nil
			s.mu.Unlock()

			if snap != nil {
				s.handler(*snap)
			}
		}
	}
}
