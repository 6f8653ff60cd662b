package listing

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/text/collate"

	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

type Controller[T any] struct {
	doer   transport.Doer
	ep     Endpoint[T]
	logger logging.Logger

	mu        sync.Mutex
	coll      *collate.Collator
	query     Query
	items     []T
	total     int
	estimated bool
	loading   bool
	err       error
	gen       uint64 // bumped when a fetch starts
	applied   uint64 // bumped when a fetch result replaces the page
	rev       uint64 // bumped on every local edit
	closed    bool
	subs      map[int]func(View[T])
	nextSub   int
}

type Option func(*options)

type options struct {
	pageSize int
	logger   logging.Logger
}

func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New[T any](doer transport.Doer, ep Endpoint[T], opts ...Option) *Controller[T] {
	o := options{pageSize: DefaultPageSize, logger: logging.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.pageSize < 1 {
		o.pageSize = DefaultPageSize
	}
	return &Controller[T]{
		doer:   doer,
		ep:     ep,
		logger: o.logger.With("component", "listing", "path", ep.Path),
		coll:   newCollator(),
		query: Query{
			Page:      1,
			PageSize:  o.pageSize,
			Filters:   map[string]string{},
			SortKey:   ep.DefaultSort,
			SortOrder: ep.DefaultOrder,
		},
		subs: make(map[int]func(View[T])),
	}
}

func (c *Controller[T]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query.clone()
}

func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller[T]) viewLocked() View[T] {
	return View[T]{
		Query:      c.query.clone(),
		Items:      slices.Clone(c.items),
		Total:      c.total,
		Estimated:  c.estimated,
		TotalPages: TotalPages(c.total, c.query.PageSize),
		Loading:    c.loading,
		Err:        c.err,
	}
}

func (c *Controller[T]) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TotalPages(c.total, c.query.PageSize)
}

// Subscribe registers fn for every published View. The returned func
// removes it.
func (c *Controller[T]) Subscribe(fn func(View[T])) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close detaches the controller. In-flight responses are discarded and
// later calls fail with ErrClosed.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.subs = map[int]func(View[T]){}
	c.mu.Unlock()
}

// SetPage fetches page n. Pages outside [1, TotalPages] are rejected
// with ErrPageOutOfRange and leave the controller untouched.
func (c *Controller[T]) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	if n < 1 || n > TotalPages(c.total, c.query.PageSize) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, n)
	}
	c.query.Page = n
	c.mu.Unlock()
	return c.Fetch(ctx)
}

func (c *Controller[T]) NextPage(ctx context.Context) error {
	return c.SetPage(ctx, c.Query().Page+1)
}

func (c *Controller[T]) PrevPage(ctx context.Context) error {
	return c.SetPage(ctx, c.Query().Page-1)
}

// SetPageSize changes the page size, returns to page 1 and fetches.
func (c *Controller[T]) SetPageSize(ctx context.Context, n int) error {
	if n < 1 {
		return ErrInvalidPageSize
	}
	c.mu.Lock()
	c.query.PageSize = n
	c.query.Page = 1
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// ApplyFilters merges patch into the applied filters; an empty value
// removes the key. The page resets to 1 and a fetch follows.
func (c *Controller[T]) ApplyFilters(ctx context.Context, patch map[string]string) error {
	c.mu.Lock()
	for k := range patch {
		if c.ep.Filters != nil {
			if _, ok := c.ep.Filters[k]; !ok {
				c.mu.Unlock()
				return fmt.Errorf("%w: %s", ErrUnknownFilter, k)
			}
		}
	}
	for k, v := range patch {
		if v == "" {
			delete(c.query.Filters, k)
			continue
		}
		c.query.Filters[k] = v
	}
	c.query.Page = 1
	c.mu.Unlock()
	return c.Fetch(ctx)
}

func (c *Controller[T]) ClearFilters(ctx context.Context) error {
	c.mu.Lock()
	c.query.Filters = map[string]string{}
	c.query.Page = 1
	c.mu.Unlock()
	return c.Fetch(ctx)
}

// SetSort reorders the held page. It never fetches and never moves the page.
func (c *Controller[T]) SetSort(key string, order SortOrder) error {
	c.mu.Lock()
	acc, ok := c.ep.SortKeys[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSortKey, key)
	}
	c.query.SortKey = key
	c.query.SortOrder = order
	sortItems(c.items, acc, order, c.coll)
	c.publishLocked()
	return nil
}

// ToggleSort flips the order when key is already active and otherwise
// selects key ascending.
func (c *Controller[T]) ToggleSort(key string) error {
	q := c.Query()
	order := Asc
	if q.SortKey == key && q.SortOrder == Asc {
		order = Desc
	}
	return c.SetSort(key, order)
}

// Fetch loads the current query. A response overtaken by a newer Fetch
// is dropped and Fetch returns nil; the newer call reports the outcome.
// On failure the held items are emptied and the total is zero.
func (c *Controller[T]) Fetch(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.gen++
	gen := c.gen
	q := c.query.clone()
	c.loading = true
	c.publishLocked()

	p, err := c.ep.load(ctx, c.doer, q)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug(ctx, "stale response discarded", "page", q.Page, "generation", gen)
		if c.isClosed() {
			return ErrClosed
		}
		return nil
	}
	c.loading = false
	c.applied++
	if err != nil {
		c.items = nil
		c.total = 0
		c.estimated = false
		c.err = err
		c.logger.Warn(ctx, "fetch failed", "page", q.Page, "error", err)
	} else {
		c.items = p.items
		c.total = p.total
		c.estimated = p.estimated
		c.err = nil
		if acc, ok := c.ep.SortKeys[c.query.SortKey]; ok {
			sortItems(c.items, acc, c.query.SortOrder, c.coll)
		}
	}
	c.publishLocked()
	return err
}

func (c *Controller[T]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// publishLocked snapshots the view and subscribers, releases c.mu and
// delivers.
func (c *Controller[T]) publishLocked() {
	v := c.viewLocked()
	subs := make([]func(View[T]), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// Snapshot captures the held page for a later Restore or Patch.
type Snapshot[T any] struct {
	items   []T
	gen     uint64
	applied uint64
}

func (s Snapshot[T]) Items() []T { return slices.Clone(s.items) }

func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{items: slices.Clone(c.items), gen: c.gen, applied: c.applied}
}

// current reports whether the page s was taken from is still held: no
// fetch has started or landed since.
func (c *Controller[T]) current(s Snapshot[T]) bool {
	return c.gen == s.gen && c.applied == s.applied
}

// Update replaces the held items with fn's result and publishes it. It
// returns the page as it was just before, and the new revision, for a
// later Restore. fn receives a copy.
func (c *Controller[T]) Update(fn func([]T) []T) (Snapshot[T], uint64) {
	c.mu.Lock()
	before := c.snapshotLocked()
	c.items = fn(slices.Clone(c.items))
	c.rev++
	rev := c.rev
	c.publishLocked()
	return before, rev
}

// Restore puts back exactly the items captured by s, provided neither a
// fetch nor another edit has changed the page since the Update that
// returned s and rev.
func (c *Controller[T]) Restore(s Snapshot[T], rev uint64) bool {
	c.mu.Lock()
	if !c.current(s) || c.rev != rev {
		c.mu.Unlock()
		return false
	}
	c.items = slices.Clone(s.items)
	c.rev++
	c.publishLocked()
	return true
}

// Patch applies fn like Update, unless a fetch has started or replaced
// the page since s was taken.
func (c *Controller[T]) Patch(s Snapshot[T], fn func([]T) []T) bool {
	c.mu.Lock()
	if !c.current(s) {
		c.mu.Unlock()
		return false
	}
	c.items = fn(slices.Clone(c.items))
	c.rev++
	c.publishLocked()
	return true
}

// Items returns a copy of the held page.
func (c *Controller[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}
