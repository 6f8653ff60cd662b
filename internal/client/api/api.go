// Package api binds the generic client machinery to the ATM fleet REST
// API: list endpoints, single-entity calls, optimistic actions and the
// role rules the console uses to hide what the server would refuse.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/atmadmin/internal/client/listing"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
)

const (
	PathATMs       = "/atms/"
	PathStatuses   = "/atms/statuses/"
	PathLogs       = "/logs/"
	PathLevels     = "/logs/levels/"
	PathEventTypes = "/logs/event_types/"
	PathUsers      = "/users/"
)

func atmPath(id int64) string     { return "/atms/" + strconv.FormatInt(id, 10) }
func atmLogsPath(id int64) string { return atmPath(id) + "/logs/" }
func logPath(id int64) string     { return "/logs/" + strconv.FormatInt(id, 10) }
func userPath(id int64) string    { return "/users/" + strconv.FormatInt(id, 10) }

type Client struct {
	doer transport.Doer
	now  func() time.Time
}

func New(doer transport.Doer) *Client {
	return &Client{doer: doer, now: time.Now}
}

func (c *Client) do(ctx context.Context, method, path string, body any) transport.Response {
	return c.doer.Do(ctx, transport.Request{Method: method, Path: path, Body: body})
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	v, err := transport.DecodeAs[T](c.do(ctx, method, path, body))
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return v, nil
}

func (c *Client) GetATM(ctx context.Context, id int64) (models.ATM, error) {
	return call[models.ATM](ctx, c, http.MethodGet, atmPath(id), nil)
}

func (c *Client) CreateATM(ctx context.Context, in models.ATMInput) (models.ATM, error) {
	return call[models.ATM](ctx, c, http.MethodPost, PathATMs, in)
}

func (c *Client) UpdateATM(ctx context.Context, id int64, in models.ATMInput) (models.ATM, error) {
	return call[models.ATM](ctx, c, http.MethodPut, atmPath(id), in)
}

func (c *Client) DeleteATM(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, atmPath(id), nil).Err(); err != nil {
		return fmt.Errorf("delete atm %d: %w", id, err)
	}
	return nil
}

func (c *Client) ATMStatuses(ctx context.Context) ([]models.ATMStatus, error) {
	return call[[]models.ATMStatus](ctx, c, http.MethodGet, PathStatuses, nil)
}

func (c *Client) LogLevels(ctx context.Context) ([]models.LogLevel, error) {
	return call[[]models.LogLevel](ctx, c, http.MethodGet, PathLevels, nil)
}

func (c *Client) EventTypes(ctx context.Context) ([]models.EventType, error) {
	return call[[]models.EventType](ctx, c, http.MethodGet, PathEventTypes, nil)
}

func (c *Client) GetLog(ctx context.Context, id int64) (models.LogEntry, error) {
	return call[models.LogEntry](ctx, c, http.MethodGet, logPath(id), nil)
}

func (c *Client) AcknowledgeLog(ctx context.Context, id int64) (models.LogEntry, error) {
	return call[models.LogEntry](ctx, c, http.MethodPatch, logPath(id)+"/acknowledge", nil)
}

// CreateLog reports an event for a device. The doer is expected to carry
// the device API key.
func (c *Client) CreateLog(ctx context.Context, atmID int64, in models.LogInput) (models.LogEntry, error) {
	return call[models.LogEntry](ctx, c, http.MethodPost, atmLogsPath(atmID), in)
}

type roleUpdate struct {
	Role models.Role `json:"role"`
}

func (c *Client) ChangeRole(ctx context.Context, userID int64, role models.Role) (models.User, error) {
	return call[models.User](ctx, c, http.MethodPut, userPath(userID)+"/role", roleUpdate{Role: role})
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	if err := c.do(ctx, http.MethodDelete, userPath(userID), nil).Err(); err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	return nil
}

// ATMs returns a controller over the device list.
func (c *Client) ATMs(opts ...listing.Option) *listing.Controller[models.ATM] {
	return listing.New(c.doer, ATMEndpoint(), opts...)
}

// Logs returns a controller over one device's log. A 404 is resolved
// against the device itself.
func (c *Client) Logs(atmID int64, opts ...listing.Option) *listing.Controller[models.LogEntry] {
	return listing.New(c.doer, LogEndpoint(c.doer, atmID), opts...)
}

func (c *Client) Users(opts ...listing.Option) *listing.Controller[models.User] {
	return listing.New(c.doer, UserEndpoint(), opts...)
}
