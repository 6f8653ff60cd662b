// Package actions applies single-item mutations optimistically against a
// listing.Controller and rolls them back when the server refuses them.
package actions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/atmadmin/internal/client/listing"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

var (
	ErrInFlight     = errors.New("actions: an action on this item is already in flight")
	ErrItemNotFound = errors.New("actions: item not on the current page")
)

// Page is the part of a listing.Controller an Executor works on.
type Page[T any] interface {
	Update(fn func([]T) []T) (listing.Snapshot[T], uint64)
	Restore(s listing.Snapshot[T], rev uint64) bool
	Patch(s listing.Snapshot[T], fn func([]T) []T) bool
}

// Mutation describes one optimistic action on the item with key ID.
type Mutation[T any, K comparable] struct {
	ID K
	// Apply returns the optimistic version of the item, or remove=true to
	// drop it from the page. It must not write through pointers it
	// shares with the original.
	Apply func(T) (next T, remove bool)
	// Call performs the server request. A non-nil echo replaces the item
	// once the call succeeds.
	Call func(ctx context.Context) (echo *T, err error)
}

type Executor[T any, K comparable] struct {
	page   Page[T]
	key    func(T) K
	logger logging.Logger

	mu       sync.Mutex
	inFlight map[K]struct{}
}

func New[T any, K comparable](page Page[T], key func(T) K, logger logging.Logger) *Executor[T, K] {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor[T, K]{
		page:     page,
		key:      key,
		logger:   logger.With("component", "actions"),
		inFlight: make(map[K]struct{}),
	}
}

// InFlight reports whether an action on id is outstanding.
func (e *Executor[T, K]) InFlight(id K) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[id]
	return ok
}

// Run applies m optimistically, then calls the server. On failure the
// page goes back to exactly what it was before Run; if other changes
// landed meanwhile only this item is reverted. Run refuses a second
// action on the same item while one is outstanding.
func (e *Executor[T, K]) Run(ctx context.Context, m Mutation[T, K]) error {
	if !e.acquire(m.ID) {
		return fmt.Errorf("%w: %v", ErrInFlight, m.ID)
	}
	defer e.release(m.ID)

	found := false
	snap, rev := e.page.Update(func(items []T) []T {
		i, ok := e.find(items, m.ID)
		if !ok {
			return items
		}
		found = true
		next, remove := m.Apply(items[i])
		if remove {
			return slices.Delete(items, i, i+1)
		}
		items[i] = next
		return items
	})
	if !found {
		return fmt.Errorf("%w: %v", ErrItemNotFound, m.ID)
	}

	echo, err := m.Call(ctx)
	if err != nil {
		e.rollback(ctx, snap, rev, m.ID)
		return err
	}

	if echo != nil {
		e.page.Patch(snap, func(items []T) []T {
			if i, ok := e.find(items, m.ID); ok {
				items[i] = *echo
			}
			return items
		})
	}
	return nil
}

func (e *Executor[T, K]) rollback(ctx context.Context, snap listing.Snapshot[T], rev uint64, id K) {
	if e.page.Restore(snap, rev) {
		e.logger.Debug(ctx, "rolled back", "id", id)
		return
	}
	orig := snap.Items()
	si, _ := e.find(orig, id)
	ok := e.page.Patch(snap, func(items []T) []T {
		if ci, ok := e.find(items, id); ok {
			items[ci] = orig[si]
			return items
		}
		return slices.Insert(items, min(si, len(items)), orig[si])
	})
	if ok {
		e.logger.Debug(ctx, "reverted item", "id", id)
		return
	}
	e.logger.Debug(ctx, "page reloaded before rollback", "id", id)
}

func (e *Executor[T, K]) find(items []T, id K) (int, bool) {
	for i, it := range items {
		if e.key(it) == id {
			return i, true
		}
	}
	return -1, false
}

func (e *Executor[T, K]) acquire(id K) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[id]; busy {
		return false
	}
	e.inFlight[id] = struct{}{}
	return true
}

func (e *Executor[T, K]) release(id K) {
	e.mu.Lock()
	delete(e.inFlight, id)
	e.mu.Unlock()
}
