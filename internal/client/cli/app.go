package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/atmadmin/internal/client/api"
	"github.com/dmitrijs2005/atmadmin/internal/client/authevents"
	"github.com/dmitrijs2005/atmadmin/internal/client/config"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/session"
	"github.com/dmitrijs2005/atmadmin/internal/client/storage"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	session  *session.Manager
	api      *api.Client
	registry *prometheus.Registry
	reader   *bufio.Reader
	out      io.Writer
	closers  []io.Closer

	mu          sync.Mutex
	screen      screen
	atms        *listScreen[models.ATM]
	logs        *listScreen[models.LogEntry]
	logActions  *api.LogActions
	users       *listScreen[models.User]
	userActions *api.UserActions
}

// NewApp opens the token store and wires the transport, session manager
// and API client for c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Format: c.LogFormat, Level: c.LogLevel, Output: os.Stderr})
	if err != nil {
		return nil, err
	}

	store, err := storage.OpenSQLite(ctx, c.TokenDBPath)
	if err != nil {
		logger.Error(ctx, "error initializing token store", "error", err)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bus := authevents.NewBus()
	tr := transport.New(c.APIBaseURL, store, bus,
		transport.WithTimeout(c.RequestTimeout),
		transport.WithLogger(logger),
		transport.WithMetrics(transport.NewMetrics(reg)),
	)

	a := newApp(c, logger, store, tr, bus, os.Stdin, os.Stdout)
	a.registry = reg
	a.closers = append(a.closers, store)
	return a, nil
}

func newApp(c *config.Config, logger logging.Logger, store storage.TokenStore, doer transport.Doer, bus *authevents.Bus, in io.Reader, out io.Writer) *App {
	a := &App{
		config: c,
		logger: logger,
		api:    api.New(doer),
		reader: bufio.NewReader(in),
		out:    out,
	}
	a.session = session.NewManager(doer, store, bus,
		session.WithLogger(logger),
		session.WithRedirector(a.onRedirect),
	)
	return a
}

// Run validates any stored session and serves the REPL until the user
// exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	if a.config.MetricsAddr != "" && a.registry != nil {
		go serveMetrics(ctx, a.config.MetricsAddr, a.registry, a.logger)
	}

	if err := a.session.Start(ctx); err != nil {
		printlnFn("Stored session rejected:", describe(err))
	}
	if u, ok := a.session.Session().User(); ok {
		printlnFn(fmt.Sprintf("Welcome back, %s (%s)", u.Username, u.Role))
	}

	printlnFn("ATM fleet console (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) Close() {
	a.dropScreens()
	a.session.Close()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error(context.Background(), "close", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.Session().Authenticated()
}

func (a *App) currentUser() (models.User, bool) {
	return a.session.Session().User()
}

func (a *App) getStatus() string {
	s := ""
	if u, ok := a.currentUser(); ok {
		s = u.Username + " " + string(u.Role)
	}
	if sc := a.current(); sc != nil {
		if s != "" {
			s += " "
		}
		s += sc.status()
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// onRedirect runs whenever the session ends. Open screens belong to the
// old session and are dropped.
func (a *App) onRedirect(reason session.Reason) {
	a.dropScreens()
	if reason == session.ReasonLogout {
		printlnFn("Logged out.")
		return
	}
	printlnFn(fmt.Sprintf("Session ended (%s). Please log in again.", reason))
}

func (a *App) current() screen {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.screen
}

func (a *App) setScreen(s screen) {
	a.mu.Lock()
	old := a.screen
	a.screen = s
	a.atms, a.logs, a.logActions, a.users, a.userActions = nil, nil, nil, nil, nil
	a.mu.Unlock()
	if old != nil {
		old.close()
	}
}

func (a *App) dropScreens() {
	a.setScreen(nil)
}
