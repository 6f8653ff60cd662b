package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
)

type page[T any] struct {
	items     []T
	total     int
	estimated bool
}

type envelope[T any] struct {
	Data  []T  `json:"data"`
	Total *int `json:"total"`
}

func (e Endpoint[T]) params(q Query) (url.Values, error) {
	v := url.Values{}
	for k, vals := range e.Params {
		v[k] = append([]string(nil), vals...)
	}
	for name, val := range q.Filters {
		key := name
		if e.Filters != nil {
			mapped, ok := e.Filters[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
			}
			key = mapped
		}
		v.Set(key, val)
	}
	v.Set("skip", strconv.Itoa(q.Skip()))
	v.Set("limit", strconv.Itoa(q.PageSize))
	return v, nil
}

func (e Endpoint[T]) load(ctx context.Context, doer transport.Doer, q Query) (page[T], error) {
	params, err := e.params(q)
	if err != nil {
		return page[T]{}, err
	}

	resp := doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: e.Path, Query: params})
	switch resp.Kind {
	case transport.KindOK:
		return decodePage[T](resp, q)
	case transport.KindNotFound:
		if e.ParentExists == nil {
			return page[T]{}, nil
		}
		ok, err := e.ParentExists(ctx)
		if err != nil {
			return page[T]{}, err
		}
		if !ok {
			return page[T]{}, ErrParentNotFound
		}
		return page[T]{}, nil
	}
	return page[T]{}, resp.Err()
}

// decodePage resolves the total from the body envelope, then the
// X-Total-Count header, and finally estimates it from the page length.
func decodePage[T any](resp transport.Response, q Query) (page[T], error) {
	body := bytes.TrimSpace(resp.Body)

	if len(body) > 0 && body[0] == '{' {
		var env envelope[T]
		if err := json.Unmarshal(body, &env); err != nil {
			return page[T]{}, fmt.Errorf("decode page: %w", err)
		}
		if env.Total != nil {
			return page[T]{items: env.Data, total: *env.Total}, nil
		}
		return withHeaderTotal(resp, q, env.Data), nil
	}

	var items []T
	if len(body) > 0 {
		if err := json.Unmarshal(body, &items); err != nil {
			return page[T]{}, fmt.Errorf("decode page: %w", err)
		}
	}
	return withHeaderTotal(resp, q, items), nil
}

func withHeaderTotal[T any](resp transport.Response, q Query, items []T) page[T] {
	if h := resp.Header.Get(transport.HeaderTotalCount); h != "" {
		if n, err := strconv.Atoi(h); err == nil && n >= 0 {
			return page[T]{items: items, total: n}
		}
	}
	total := q.Skip() + len(items)
	if len(items) == q.PageSize {
		total++
	}
	return page[T]{items: items, total: total, estimated: true}
}

// ParentCheck builds an Endpoint.ParentExists that GETs path.
func ParentCheck(doer transport.Doer, path string) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		resp := doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: path})
		switch resp.Kind {
		case transport.KindOK:
			return true, nil
		case transport.KindNotFound:
			return false, nil
		}
		return false, resp.Err()
	}
}
