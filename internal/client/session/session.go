// Package session owns the console's authentication state machine.
//
// A Manager moves between four phases:
//
//	Unauthenticated -> (login) -> Validating -> Authenticated
//	Unauthenticated -> (start, token stored) -> Validating -> Authenticated | Unauthenticated
//	Authenticated -> (logout | auth event) -> Invalidating -> Unauthenticated
//
// Invalidating is only observed while a teardown is clearing the stored
// token. Every entry into Unauthenticated from Authenticated or Validating
// requests exactly one redirect to the login surface.
package session

import (
	"errors"

	"github.com/dmitrijs2005/atmadmin/internal/client/models"
)

type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseValidating
	PhaseAuthenticated
	PhaseInvalidating
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseValidating:
		return "validating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseInvalidating:
		return "invalidating"
	}
	return "unknown"
}

var (
	ErrInvalidTransition = errors.New("session: invalid transition")
	ErrTokenLost         = errors.New("session: token cleared during login")
	ErrTokenExpired      = errors.New("session: stored token expired")
	ErrEmptyToken        = errors.New("session: server returned an empty token")
)

// Session is an immutable view of the manager's state. Only the
// constructors below build one, so a token without a user never appears
// as Authenticated and Unauthenticated never carries either.
type Session struct {
	phase Phase
	token string
	user  models.User
}

func unauthenticated() Session { return Session{phase: PhaseUnauthenticated} }

func validating(token string) Session { return Session{phase: PhaseValidating, token: token} }

func authenticated(token string, u models.User) Session {
	return Session{phase: PhaseAuthenticated, token: token, user: u}
}

func invalidating() Session { return Session{phase: PhaseInvalidating} }

func (s Session) Phase() Phase { return s.phase }

// Token is empty unless the phase is Validating or Authenticated.
func (s Session) Token() string { return s.token }

// User returns the signed-in user; ok is false outside Authenticated.
func (s Session) User() (models.User, bool) {
	if s.phase != PhaseAuthenticated {
		return models.User{}, false
	}
	return s.user, true
}

func (s Session) Authenticated() bool { return s.phase == PhaseAuthenticated }

// Reason tells the redirect target why the session ended.
type Reason int

const (
	ReasonLogout Reason = iota
	ReasonSessionExpired
	ReasonValidationFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonLogout:
		return "logout"
	case ReasonSessionExpired:
		return "session expired"
	case ReasonValidationFailed:
		return "validation failed"
	}
	return "unknown"
}

// Redirector is asked to show the login surface.
type Redirector func(Reason)
