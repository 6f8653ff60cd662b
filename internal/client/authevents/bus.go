// Package authevents is the process-wide "session became invalid" channel.
//
// Transport is the only publisher; the session manager and any view that
// must react to a lost session subscribe. Handlers run synchronously on the
// publishing goroutine, outside the bus lock, so a handler may unsubscribe
// itself or publish again without deadlocking.
package authevents

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event describes one authentication failure observed by Transport.
type Event struct {
	Method string
	Path   string
	At     time.Time
}

type Handler func(Event)

type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*Subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	bus *Bus
	id  uint64
	h   Handler

	active atomic.Bool
}

// Subscribe registers h until the returned subscription is cancelled.
func (b *Bus) Subscribe(h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	s := &Subscription{bus: b, id: b.next, h: h}
	s.active.Store(true)
	b.subs[s.id] = s
	return s
}

// Unsubscribe is idempotent. Once it returns no new delivery to the
// handler starts; a delivery already running is allowed to finish.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.active.Store(false)

	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}

func (s *Subscription) deliver(e Event) {
	if s.active.Load() {
		s.h(e)
	}
}

// Publish delivers e to every current subscriber. Delivery order is unspecified.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(e)
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
