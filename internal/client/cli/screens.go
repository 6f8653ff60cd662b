package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/atmadmin/internal/client/listing"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
)

// screen is the REPL's view of whichever list is open.
type screen interface {
	status() string
	fetch(ctx context.Context) error
	setPage(ctx context.Context, n int) error
	next(ctx context.Context) error
	prev(ctx context.Context) error
	setSize(ctx context.Context, n int) error
	sort(key, order string) error
	filter(ctx context.Context, patch map[string]string) error
	clear(ctx context.Context) error
	render(w io.Writer)
	close()
}

type column[T any] struct {
	header string
	cell   func(T) string
}

type listScreen[T any] struct {
	title   string
	ctl     *listing.Controller[T]
	columns []column[T]
}

func (s *listScreen[T]) status() string {
	q := s.ctl.Query()
	return fmt.Sprintf("%s p%d/%d", s.title, q.Page, s.ctl.TotalPages())
}

func (s *listScreen[T]) fetch(ctx context.Context) error { return s.ctl.Fetch(ctx) }

func (s *listScreen[T]) setPage(ctx context.Context, n int) error { return s.ctl.SetPage(ctx, n) }

func (s *listScreen[T]) next(ctx context.Context) error { return s.ctl.NextPage(ctx) }

func (s *listScreen[T]) prev(ctx context.Context) error { return s.ctl.PrevPage(ctx) }

func (s *listScreen[T]) setSize(ctx context.Context, n int) error { return s.ctl.SetPageSize(ctx, n) }

func (s *listScreen[T]) sort(key, order string) error {
	if order == "" {
		return s.ctl.ToggleSort(key)
	}
	return s.ctl.SetSort(key, listing.ParseSortOrder(order))
}

func (s *listScreen[T]) filter(ctx context.Context, patch map[string]string) error {
	return s.ctl.ApplyFilters(ctx, patch)
}

func (s *listScreen[T]) clear(ctx context.Context) error { return s.ctl.ClearFilters(ctx) }

func (s *listScreen[T]) close() { s.ctl.Close() }

func (s *listScreen[T]) render(w io.Writer) {
	v := s.ctl.View()

	total := fmt.Sprintf("%d", v.Total)
	if v.Estimated {
		total = "about " + total
	}
	fmt.Fprintf(w, "%s: page %d of %d, %s total", s.title, v.Query.Page, v.TotalPages, total)
	if v.Query.SortKey != "" {
		fmt.Fprintf(w, ", sorted by %s %s", v.Query.SortKey, v.Query.SortOrder)
	}
	fmt.Fprintln(w)
	if len(v.Query.Filters) > 0 {
		keys := make([]string, 0, len(v.Query.Filters))
		for k := range v.Query.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+v.Query.Filters[k])
		}
		fmt.Fprintf(w, "filters: %s\n", strings.Join(parts, " "))
	}

	if len(v.Items) == 0 {
		fmt.Fprintln(w, "(no items)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(s.columns))
	for i, c := range s.columns {
		headers[i] = c.header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, it := range v.Items {
		cells := make([]string, len(s.columns))
		for i, c := range s.columns {
			cells[i] = c.cell(it)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func atmColumns() []column[models.ATM] {
	return []column[models.ATM]{
		{"ID", func(a models.ATM) string { return fmt.Sprint(a.ID) }},
		{"UID", func(a models.ATM) string { return a.UID }},
		{"LOCATION", func(a models.ATM) string { return orDash(a.LocationDescription) }},
		{"IP", func(a models.ATM) string { return orDash(a.IPAddress) }},
		{"STATUS", func(a models.ATM) string { return a.Status.Name }},
		{"CREATED", func(a models.ATM) string { return fmtTime(a.CreatedAt) }},
	}
}

func logColumns() []column[models.LogEntry] {
	return []column[models.LogEntry]{
		{"ID", func(l models.LogEntry) string { return fmt.Sprint(l.ID) }},
		{"TIME", func(l models.LogEntry) string { return fmtTime(l.EventTimestamp) }},
		{"LEVEL", func(l models.LogEntry) string { return l.LogLevel.Name }},
		{"EVENT", func(l models.LogEntry) string {
			if l.EventType == nil {
				return "-"
			}
			return l.EventType.Name
		}},
		{"ALERT", func(l models.LogEntry) string {
			switch {
			case !l.IsAlert:
				return ""
			case l.Acknowledged():
				return "acked"
			}
			return "ALERT"
		}},
		{"MESSAGE", func(l models.LogEntry) string { return l.Message }},
	}
}

func userColumns() []column[models.User] {
	return []column[models.User]{
		{"ID", func(u models.User) string { return fmt.Sprint(u.ID) }},
		{"USERNAME", func(u models.User) string { return u.Username }},
		{"EMAIL", func(u models.User) string { return u.Email }},
		{"ROLE", func(u models.User) string { return string(u.Role) }},
		{"CREATED", func(u models.User) string { return fmtTime(u.CreatedAt) }},
	}
}
