package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/atmadmin/internal/client/authevents"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/storage"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

const (
	PathLogin    = "/auth/login/token"
	PathValidate = "/auth/validate-token"
	PathSignup   = "/auth/signup"
)

// anyPhase lets teardown start from whichever live phase is current.
const anyPhase Phase = -1

type Manager struct {
	doer   transport.Doer
	tokens storage.TokenStore
	bus    *authevents.Bus
	logger logging.Logger
	now    func() time.Time

	// opMu serializes Login and ValidateExisting so a login issued while
	// validation is in flight waits for it. Teardown never takes it.
	opMu sync.Mutex

	mu       sync.Mutex
	state    Session
	redirect Redirector
	sub      *authevents.Subscription
	watchers map[int]func(Session)
	nextID   int
}

type Option func(*Manager)

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithRedirector(r Redirector) Option {
	return func(m *Manager) { m.redirect = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(doer transport.Doer, tokens storage.TokenStore, bus *authevents.Bus, opts ...Option) *Manager {
	m := &Manager{
		doer:     doer,
		tokens:   tokens,
		bus:      bus,
		logger:   logging.Nop(),
		now:      time.Now,
		state:    unauthenticated(),
		watchers: make(map[int]func(Session)),
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// Start subscribes to auth events and validates a stored token, if any.
// The returned error only reports why a stored token was rejected; the
// manager is usable either way.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.sub == nil && m.bus != nil {
		m.sub = m.bus.Subscribe(m.onAuthEvent)
	}
	m.mu.Unlock()

	token, err := m.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}
	if token == "" {
		return nil
	}
	return m.ValidateExisting(ctx)
}

// Close stops listening for auth events. Redirects are not requested
// after Close returns.
func (m *Manager) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.redirect = nil
	m.mu.Unlock()
	sub.Unsubscribe()
}

func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Watch registers fn to receive every state change. The returned func
// removes it.
func (m *Manager) Watch(fn func(Session)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Login exchanges credentials for a token and resolves the current user.
// A call made while a validation is in flight waits for it, then fails
// with ErrInvalidTransition if that validation signed the user in.
// No token is stored when the exchange fails.
func (m *Manager) Login(ctx context.Context, username, password string) (models.User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if p := m.Session().Phase(); p != PhaseUnauthenticated {
		return models.User{}, fmt.Errorf("%w: login while %s", ErrInvalidTransition, p)
	}

	resp := m.doer.Do(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      PathLogin,
		Form:      url.Values{"username": {username}, "password": {password}},
		Anonymous: true,
	})
	tok, err := transport.DecodeAs[models.TokenResponse](resp)
	if err != nil {
		m.logger.Info(ctx, "login rejected", "username", username, "kind", resp.Kind.String())
		return models.User{}, err
	}
	if tok.AccessToken == "" {
		return models.User{}, ErrEmptyToken
	}

	if err := m.tokens.SetToken(ctx, tok.AccessToken); err != nil {
		return models.User{}, fmt.Errorf("store token: %w", err)
	}
	if !m.enter(ctx, PhaseUnauthenticated, validating(tok.AccessToken)) {
		_ = m.tokens.ClearToken(ctx)
		return models.User{}, ErrTokenLost
	}
	return m.resolve(ctx, tok.AccessToken)
}

// ValidateExisting resolves the user behind the stored token. Any failure
// clears the token and leaves the manager Unauthenticated.
func (m *Manager) ValidateExisting(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if p := m.Session().Phase(); p != PhaseUnauthenticated {
		return fmt.Errorf("%w: validate while %s", ErrInvalidTransition, p)
	}

	token, err := m.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}
	if token == "" {
		return nil
	}

	if !m.enter(ctx, PhaseUnauthenticated, validating(token)) {
		return ErrTokenLost
	}

	if m.expired(token) {
		m.logger.Info(ctx, "stored token expired")
		m.teardown(ctx, PhaseValidating, ReasonValidationFailed)
		return ErrTokenExpired
	}

	_, err = m.resolve(ctx, token)
	return err
}

// resolve fetches the current user for token, which must be the one held
// in the Validating state, and completes the transition.
func (m *Manager) resolve(ctx context.Context, token string) (models.User, error) {
	resp := m.doer.Do(ctx, transport.Request{Method: http.MethodPost, Path: PathValidate})
	user, err := transport.DecodeAs[models.User](resp)
	if err != nil {
		m.teardown(ctx, PhaseValidating, ReasonValidationFailed)
		return models.User{}, err
	}

	stored, err := m.tokens.Token(ctx)
	if err != nil || stored != token {
		m.teardown(ctx, PhaseValidating, ReasonValidationFailed)
		return models.User{}, ErrTokenLost
	}

	if !m.enter(ctx, PhaseValidating, authenticated(token, user)) {
		return models.User{}, ErrTokenLost
	}
	return user, nil
}

// Logout clears the token and drops to Unauthenticated. It is safe to call
// in any phase.
func (m *Manager) Logout(ctx context.Context) error {
	m.teardown(ctx, anyPhase, ReasonLogout)
	if err := m.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (m *Manager) onAuthEvent(e authevents.Event) {
	ctx := context.Background()
	m.logger.Debug(ctx, "auth event", "method", e.Method, "path", e.Path)
	m.teardown(ctx, anyPhase, ReasonSessionExpired)
}

// enter replaces the state with next when the current phase is from.
func (m *Manager) enter(ctx context.Context, from Phase, next Session) bool {
	m.mu.Lock()
	if m.state.phase != from {
		m.mu.Unlock()
		return false
	}
	m.state = next
	watchers := m.snapshotWatchers()
	m.mu.Unlock()

	m.logger.Info(ctx, "session transition", "from", from.String(), "to", next.phase.String())
	for _, w := range watchers {
		w(next)
	}
	return true
}

// teardown moves an Authenticated or Validating session through
// Invalidating to Unauthenticated and requests one redirect. Unless only
// is anyPhase, the teardown happens only from that phase. Calls that find
// nothing to tear down are no-ops, which is what keeps repeated auth
// events from redirecting twice.
func (m *Manager) teardown(ctx context.Context, only Phase, reason Reason) {
	m.mu.Lock()
	from := m.state.phase
	live := from == PhaseAuthenticated || from == PhaseValidating
	if !live || (only != anyPhase && from != only) {
		m.mu.Unlock()
		return
	}
	m.state = invalidating()
	watchers := m.snapshotWatchers()
	m.mu.Unlock()
	for _, w := range watchers {
		w(invalidating())
	}

	if err := m.tokens.ClearToken(ctx); err != nil {
		m.logger.Error(ctx, "clear token", "error", err)
	}

	m.mu.Lock()
	m.state = unauthenticated()
	watchers = m.snapshotWatchers()
	redirect := m.redirect
	m.mu.Unlock()

	m.logger.Info(ctx, "session transition", "from", from.String(), "to", PhaseUnauthenticated.String(), "reason", reason.String())
	for _, w := range watchers {
		w(unauthenticated())
	}
	if redirect != nil {
		redirect(reason)
	}
}

func (m *Manager) snapshotWatchers() []func(Session) {
	out := make([]func(Session), 0, len(m.watchers))
	for _, w := range m.watchers {
		out = append(out, w)
	}
	return out
}

// expired reports whether token is a JWT whose exp claim is already in
// the past. Opaque tokens are left for the server to judge.
func (m *Manager) expired(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.Time.After(m.now())
}

// Signup creates an account. It does not sign the new user in.
func (m *Manager) Signup(ctx context.Context, req models.SignupRequest) (models.User, error) {
	resp := m.doer.Do(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      PathSignup,
		Body:      req,
		Anonymous: true,
	})
	u, err := transport.DecodeAs[models.User](resp)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// IsAuthFailure reports whether err came from a 401.
func IsAuthFailure(err error) bool {
	return errors.Is(err, transport.ErrUnauthorized)
}
