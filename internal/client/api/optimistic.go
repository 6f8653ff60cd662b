package api

import (
	"context"

	"github.com/dmitrijs2005/atmadmin/internal/client/actions"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
)

type (
	LogActions  = actions.Executor[models.LogEntry, int64]
	UserActions = actions.Executor[models.User, int64]
)

func LogID(l models.LogEntry) int64 { return l.ID }
func UserID(u models.User) int64    { return u.ID }

// Acknowledge marks the alert as acknowledged by actor on the page at
// once, then confirms it with the server and adopts the echoed entry.
func (c *Client) Acknowledge(ctx context.Context, ex *LogActions, actor models.User, entry models.LogEntry) error {
	if err := CheckAcknowledge(entry); err != nil {
		return err
	}
	return ex.Run(ctx, actions.Mutation[models.LogEntry, int64]{
		ID: entry.ID,
		Apply: func(l models.LogEntry) (models.LogEntry, bool) {
			now := c.now()
			by := actor.ID
			l.AcknowledgedAt = &now
			l.AcknowledgedByUserID = &by
			return l, false
		},
		Call: func(ctx context.Context) (*models.LogEntry, error) {
			echo, err := c.AcknowledgeLog(ctx, entry.ID)
			if err != nil {
				return nil, err
			}
			return &echo, nil
		},
	})
}

// SetRole changes target's role on the page at once, then on the server.
func (c *Client) SetRole(ctx context.Context, ex *UserActions, actor, target models.User, role models.Role) error {
	if err := CheckRoleChange(actor, target, role); err != nil {
		return err
	}
	return ex.Run(ctx, actions.Mutation[models.User, int64]{
		ID: target.ID,
		Apply: func(u models.User) (models.User, bool) {
			u.Role = role
			return u, false
		},
		Call: func(ctx context.Context) (*models.User, error) {
			echo, err := c.ChangeRole(ctx, target.ID, role)
			if err != nil {
				return nil, err
			}
			return &echo, nil
		},
	})
}

// RemoveUser drops target from the page at once and deletes it on the
// server; a refusal puts it back where it was.
func (c *Client) RemoveUser(ctx context.Context, ex *UserActions, actor, target models.User, loaded []models.User) error {
	if err := CheckDeleteUser(actor, target, loaded); err != nil {
		return err
	}
	return ex.Run(ctx, actions.Mutation[models.User, int64]{
		ID:    target.ID,
		Apply: func(u models.User) (models.User, bool) { return u, true },
		Call: func(ctx context.Context) (*models.User, error) {
			return nil, c.DeleteUser(ctx, target.ID)
		},
	})
}
