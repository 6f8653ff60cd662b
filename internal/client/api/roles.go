package api

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/atmadmin/internal/client/models"
)

var (
	ErrForbiddenAction = errors.New("action not permitted for this role")
	ErrInvalidRole     = errors.New("role must be operator or admin")
	ErrNoChange        = errors.New("user already has this role")
)

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbiddenAction, reason)
}

// CanViewUsers reports whether actor may open the user list.
func CanViewUsers(actor models.User) bool {
	return actor.Role.Privileged()
}

// CanManageATMs reports whether actor may create, edit or delete devices.
func CanManageATMs(actor models.User) bool {
	return actor.Role.Privileged()
}

// CheckRoleChange applies the console's pre-flight rules for setting
// target's role to role. The server checks again.
func CheckRoleChange(actor, target models.User, role models.Role) error {
	if role != models.RoleOperator && role != models.RoleAdmin {
		return ErrInvalidRole
	}
	if !actor.Role.Privileged() {
		return forbidden("only admins manage roles")
	}
	if actor.ID == target.ID && actor.Role == models.RoleSuperadmin {
		return forbidden("a superadmin cannot demote themselves")
	}
	if actor.Role == models.RoleAdmin && target.Role.Privileged() {
		return forbidden("admins cannot change other admins")
	}
	if role == models.RoleAdmin && actor.Role != models.RoleSuperadmin {
		return forbidden("only a superadmin can grant admin")
	}
	if target.Role == role {
		return ErrNoChange
	}
	return nil
}

// CheckDeleteUser applies the pre-flight rules for deleting target. loaded
// is the user page the console holds; the last superadmin in it is kept.
func CheckDeleteUser(actor, target models.User, loaded []models.User) error {
	if actor.Role != models.RoleSuperadmin {
		return forbidden("only a superadmin can delete users")
	}
	if actor.ID == target.ID {
		return forbidden("a superadmin cannot delete themselves")
	}
	if target.Role == models.RoleSuperadmin {
		n := 0
		for _, u := range loaded {
			if u.Role == models.RoleSuperadmin {
				n++
			}
		}
		if n <= 1 {
			return forbidden("cannot delete the last superadmin")
		}
	}
	return nil
}

// CheckAcknowledge mirrors the server's refusal to acknowledge non-alerts
// or alerts that were already acknowledged.
func CheckAcknowledge(l models.LogEntry) error {
	if !l.IsAlert {
		return errors.New("cannot acknowledge a non-alert log")
	}
	if l.Acknowledged() {
		return errors.New("alert already acknowledged")
	}
	return nil
}
