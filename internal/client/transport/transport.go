// Package transport is the console's single HTTP gateway to the REST API.
//
// Every call returns a classified Response instead of a Go error: callers
// switch on Response.Kind (or use Response.Err with errors.Is). Transport
// attaches the stored bearer token, and on a 401 it clears the token and
// publishes one authevents.Event so the session manager can react without
// the HTTP layer knowing about it.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/atmadmin/internal/client/authevents"
	"github.com/dmitrijs2005/atmadmin/internal/client/storage"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

const (
	HeaderTotalCount = "X-Total-Count"
	HeaderRequestID  = "X-Request-ID"
)

// Request describes one API call. Path is relative to the base URL.
// Body is JSON-encoded; Form, when set, is sent form-encoded instead.
// Anonymous requests (login, signup) never carry the bearer token.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Form      url.Values
	Anonymous bool
}

// Doer is what the session manager, list controllers and API helpers need
// from a Transport.
type Doer interface {
	Do(ctx context.Context, req Request) Response
}

type Transport struct {
	baseURL string
	client  *http.Client
	tokens  storage.TokenStore
	bus     *authevents.Bus
	logger  logging.Logger
	metrics *Metrics
	headers http.Header
}

type Option func(*Transport)

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.client = &http.Client{Timeout: d} }
}

func WithLogger(l logging.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// WithHeader adds a static header to every request (e.g. X-API-Key).
func WithHeader(key, value string) Option {
	return func(t *Transport) { t.headers.Set(key, value) }
}

// New builds a Transport for baseURL. tokens and bus may be nil for
// unauthenticated clients such as the device simulator.
func New(baseURL string, tokens storage.TokenStore, bus *authevents.Bus, opts ...Option) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		bus:     bus,
		logger:  logging.Nop(),
		headers: http.Header{},
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With("component", "transport")
	return t
}

// Do performs req and classifies the outcome. It never panics on transport
// errors and never returns them raw.
func (t *Transport) Do(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := t.do(ctx, req)
	t.metrics.observe(req.Method, resp.Kind, time.Since(start))
	return resp
}

func (t *Transport) do(ctx context.Context, req Request) Response {
	reqID := uuid.NewString()
	log := t.logger.With("method", req.Method, "path", req.Path, "request_id", reqID)

	httpReq, err := t.build(ctx, req)
	if err != nil {
		log.Error(ctx, "build request", "error", err)
		return Response{Kind: KindOther, Message: err.Error()}
	}
	httpReq.Header.Set(HeaderRequestID, reqID)

	if t.tokens != nil && !req.Anonymous {
		token, err := t.tokens.Token(ctx)
		if err != nil {
			log.Warn(ctx, "read token", "error", err)
		} else if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		log.Warn(ctx, "no response", "error", err)
		return Response{Kind: KindNetwork, Message: ErrUnavailable.Error()}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		log.Warn(ctx, "read body", "error", err)
		return Response{Kind: KindNetwork, Status: httpResp.StatusCode, Message: ErrUnavailable.Error()}
	}

	resp := classify(httpResp.StatusCode, httpResp.Header, body)

	switch resp.Kind {
	case KindOK:
		log.Debug(ctx, "ok", "status", resp.Status)
	case KindAuth:
		log.Info(ctx, "authentication failure", "status", resp.Status)
		t.invalidate(ctx, req)
	default:
		log.Warn(ctx, "request failed", "kind", resp.Kind.String(), "status", resp.Status, "message", resp.Message)
	}
	return resp
}

// invalidate clears the stored token and publishes exactly one event for
// the failing call.
func (t *Transport) invalidate(ctx context.Context, req Request) {
	if t.tokens != nil {
		if err := t.tokens.ClearToken(ctx); err != nil {
			t.logger.Error(ctx, "clear token", "error", err)
		}
	}
	if t.bus != nil {
		t.metrics.authEvent()
		t.bus.Publish(authevents.Event{Method: req.Method, Path: req.Path})
	}
}

func (t *Transport) build(ctx context.Context, req Request) (*http.Request, error) {
	u := t.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, v := range t.headers {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func (t *Transport) Get(ctx context.Context, path string, query url.Values) Response {
	return t.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

func (t *Transport) Post(ctx context.Context, path string, body any) Response {
	return t.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

func (t *Transport) PostForm(ctx context.Context, path string, form url.Values) Response {
	return t.Do(ctx, Request{Method: http.MethodPost, Path: path, Form: form})
}

func (t *Transport) Put(ctx context.Context, path string, body any) Response {
	return t.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

func (t *Transport) Patch(ctx context.Context, path string, body any) Response {
	return t.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body})
}

func (t *Transport) Delete(ctx context.Context, path string) Response {
	return t.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}
