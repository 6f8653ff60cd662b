package models

import "time"

// Role is a console user's privilege level.
type Role string

const (
	RoleOperator   Role = "operator"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOperator, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// Privileged reports whether r may manage devices and see the user list.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body returned by POST /auth/login/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
