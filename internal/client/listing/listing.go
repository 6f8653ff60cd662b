// Package listing drives paginated, filterable server collections.
//
// A Controller[T] owns one Query and the page of items it produced. Page,
// page size and filter changes go back to the server; sorting only
// reorders the page already held. Responses that arrive after a newer
// fetch started are dropped.
package listing

import (
	"context"
	"errors"
	"net/url"
)

var (
	ErrParentNotFound  = errors.New("listing: parent resource not found")
	ErrClosed          = errors.New("listing: controller closed")
	ErrPageOutOfRange  = errors.New("listing: page out of range")
	ErrInvalidPageSize = errors.New("listing: page size must be positive")
	ErrUnknownSortKey  = errors.New("listing: unknown sort key")
	ErrUnknownFilter   = errors.New("listing: unknown filter")
)

const DefaultPageSize = 10

type SortOrder int

const (
	Asc SortOrder = iota
	Desc
)

func (o SortOrder) String() string {
	if o == Desc {
		return "desc"
	}
	return "asc"
}

// ParseSortOrder accepts "asc" and "desc"; anything else is Asc.
func ParseSortOrder(s string) SortOrder {
	if s == "desc" {
		return Desc
	}
	return Asc
}

// Query is the controller's current request state. Filters holds the
// applied filter values keyed by filter name.
type Query struct {
	Page      int
	PageSize  int
	Filters   map[string]string
	SortKey   string
	SortOrder SortOrder
}

// Skip is the server offset for the query's page.
func (q Query) Skip() int {
	return (q.Page - 1) * q.PageSize
}

func (q Query) clone() Query {
	out := q
	out.Filters = make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		out.Filters[k] = v
	}
	return out
}

// Accessor extracts the value a column sorts by. It may return nil, a
// nil pointer, or a pointer to a comparable value.
type Accessor[T any] func(T) any

// Endpoint binds a Controller to one server collection.
type Endpoint[T any] struct {
	// Path of the collection, e.g. "/atms/".
	Path string
	// Params are sent with every request (e.g. a fixed atm_id).
	Params url.Values
	// Filters maps filter names to query parameters. A nil map passes
	// filter names through unchanged.
	Filters map[string]string
	// SortKeys are the columns the page can be sorted by.
	SortKeys map[string]Accessor[T]
	// DefaultSort and DefaultOrder seed the query.
	DefaultSort  string
	DefaultOrder SortOrder
	// ParentExists, when set, tells a missing parent apart from an empty
	// filtered collection after a 404.
	ParentExists func(ctx context.Context) (bool, error)
}

// View is a consistent snapshot of a Controller.
type View[T any] struct {
	Query      Query
	Items      []T
	Total      int
	Estimated  bool
	TotalPages int
	Loading    bool
	Err        error
}

// TotalPages is ceil(total/pageSize), and never less than 1.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
