package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// handlerTimeout bounds the work done for a single delivered event so a
// stuck external call can never hang a subscription's event loop.
const handlerTimeout = 2 * time.Minute

// SubscriptionDef describes one change feed subscription: a unique name,
// the query predicate, and the handler invoked per delivered event.
type SubscriptionDef struct {
	Name   string
	Query  Query
	Handle func(ctx context.Context, ev ChangeEvent)
}

// ManagerStatus reports subscription liveness for the stats surface.
type ManagerStatus struct {
	Active int      `json:"active"`
	Names  []string `json:"names"`
}

// Manager owns the set of active change feed subscriptions. Each subscription
// runs one consumer goroutine, so delivery order within a subscription is
// feed order. StopAll is a synchronization barrier: it does not return until
// every consumer has exited, so no handler runs after it returns.
type Manager struct {
	feed Feed

	// lifecycle serializes Start and StopAll. Replace-by-name must be atomic:
	// without it, two racing Starts both pass the stop step, both subscribe,
	// and the loser's consumer leaks past the stop barrier.
	lifecycle sync.Mutex

	mu    sync.Mutex
	subs  map[string]*activeSub
	order []string
}

type activeSub struct {
	name   string
	cancel CancelFunc
	done   chan struct{}
}

// NewManager creates a subscription manager over the given feed.
func NewManager(feed Feed) *Manager {
	return &Manager{
		feed: feed,
		subs: make(map[string]*activeSub),
	}
}

// Start establishes the given subscriptions. Definitions are keyed by name:
// a duplicate name replaces the prior subscription (the old one is stopped
// and awaited first) rather than stacking. Establishment failures are logged
// and joined into the returned error, but do not stop the other definitions
// and are never retried here — restart is an explicit operator action, since
// uncontrolled retry against a live feed risks duplicate event storms.
func (m *Manager) Start(ctx context.Context, defs []SubscriptionDef) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	var errs []error

	for _, def := range defs {
		if def.Name == "" || def.Handle == nil {
			errs = append(errs, fmt.Errorf("invalid subscription definition: %q", def.Name))
			continue
		}

		m.stopByName(def.Name)

		events, cancel, err := m.feed.Subscribe(ctx, def.Query)
		if err != nil {
			slog.Error("subscription failed to start",
				"subscription", def.Name,
				"collection", def.Query.Collection,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("subscription %s: %w", def.Name, err))
			continue
		}

		sub := &activeSub{
			name:   def.Name,
			cancel: cancel,
			done:   make(chan struct{}),
		}

		m.mu.Lock()
		m.subs[def.Name] = sub
		m.order = append(m.order, def.Name)
		m.mu.Unlock()

		go m.consume(def, events, sub.done)

		slog.Info("subscription started",
			"subscription", def.Name,
			"collection", def.Query.Collection,
		)
	}

	return errors.Join(errs...)
}

// consume drains one subscription's event channel. It exits when the channel
// closes, which happens only after the subscription is cancelled.
func (m *Manager) consume(def SubscriptionDef, events <-chan ChangeEvent, done chan struct{}) {
	defer close(done)

	for ev := range events {
		m.deliver(def, ev)
	}
}

// deliver invokes the handler for one event, containing panics to that
// delivery only.
func (m *Manager) deliver(def SubscriptionDef, ev ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("subscription handler panicked",
				"subscription", def.Name,
				"collection", ev.Collection,
				"document_id", ev.ID,
				"panic", r,
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	def.Handle(ctx, ev)
}

// stopByName stops and awaits one subscription if it is active.
// The caller holds the lifecycle lock.
func (m *Manager) stopByName(name string) {
	m.mu.Lock()
	sub, ok := m.subs[name]
	if ok {
		delete(m.subs, name)
		for i, n := range m.order {
			if n == name {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()

	if ok {
		sub.cancel()
		<-sub.done
	}
}

// StopAll cancels every active subscription and blocks until each
// cancellation has taken effect: after it returns, no further events from the
// stopped subscriptions will be handled.
func (m *Manager) StopAll() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	stopped := make([]*activeSub, 0, len(m.order))
	for _, name := range m.order {
		if sub, ok := m.subs[name]; ok {
			stopped = append(stopped, sub)
		}
	}
	m.subs = make(map[string]*activeSub)
	m.order = nil
	m.mu.Unlock()

	for _, sub := range stopped {
		sub.cancel()
		<-sub.done
		slog.Info("subscription stopped", "subscription", sub.name)
	}
}

// Status reports the active subscription count and names in start order.
func (m *Manager) Status() ManagerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return ManagerStatus{Active: len(names), Names: names}
}
