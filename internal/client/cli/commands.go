package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/atmadmin/internal/client/actions"
	"github.com/dmitrijs2005/atmadmin/internal/client/api"
	"github.com/dmitrijs2005/atmadmin/internal/client/listing"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
)

var (
	errNoScreen   = errors.New("no list is open; use atms, logs <atm-id> or users")
	errNotLogs    = errors.New("open a log list first: logs <atm-id>")
	errNotUsers   = errors.New("open the user list first: users")
	errNotOnPage  = errors.New("not on the current page")
	errBadArgs    = errors.New("wrong arguments")
	errNotAllowed = errors.New("your role cannot do this")
)

// describe turns err into the line shown to the user.
func describe(err error) string {
	var terr *transport.Error
	switch {
	case errors.Is(err, transport.ErrUnauthorized):
		return "not authenticated"
	case errors.Is(err, listing.ErrParentNotFound):
		return "ATM not found"
	case errors.Is(err, listing.ErrClosed):
		return "the list was closed"
	case errors.As(err, &terr) && len(terr.Fields) > 0:
		return "invalid input: " + terr.Message
	}
	return err.Error()
}

func parseID(args []string, usage string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: usage: %s", errBadArgs, usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %q is not an id", errBadArgs, args[0])
	}
	return id, nil
}

func (a *App) listOptions() []listing.Option {
	return []listing.Option{listing.WithPageSize(a.config.PageSize), listing.WithLogger(a.logger)}
}

// Register prompts for a new account and creates it.
func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.session.Signup(ctx, models.SignupRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Account %s created, you can log in now.", u.Username))
	return nil
}

// Login prompts for credentials and signs in.
func (a *App) Login(ctx context.Context) error {
	if u, ok := a.currentUser(); ok {
		printlnFn("Already logged in as", u.Username)
		return nil
	}
	username, err := GetSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.session.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, transport.ErrUnauthorized) {
			var terr *transport.Error
			if errors.As(err, &terr) && terr.Message != "" {
				return errors.New(terr.Message)
			}
		}
		return err
	}
	printlnFn(fmt.Sprintf("Welcome, %s (%s)", u.Username, u.Role))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

func (a *App) WhoAmI(ctx context.Context) error {
	u, ok := a.currentUser()
	if !ok {
		return errors.New("not logged in")
	}
	printlnFn(fmt.Sprintf("%s <%s> id=%d role=%s", u.Username, u.Email, u.ID, u.Role))
	return nil
}

// open makes s the current screen, loads it and renders the result.
func (a *App) open(ctx context.Context, s screen, bind func()) error {
	a.setScreen(s)
	if bind != nil {
		a.mu.Lock()
		bind()
		a.mu.Unlock()
	}
	err := s.fetch(ctx)
	if errors.Is(err, listing.ErrParentNotFound) {
		a.dropScreens()
		return err
	}
	if err != nil {
		return err
	}
	s.render(a.out)
	return nil
}

func (a *App) ATMs(ctx context.Context) error {
	s := &listScreen[models.ATM]{title: "atms", ctl: a.api.ATMs(a.listOptions()...), columns: atmColumns()}
	return a.open(ctx, s, func() { a.atms = s })
}

func (a *App) Logs(ctx context.Context, args []string) error {
	id, err := parseID(args, "logs <atm-id>")
	if err != nil {
		return err
	}
	ctl := a.api.Logs(id, a.listOptions()...)
	s := &listScreen[models.LogEntry]{title: fmt.Sprintf("logs of atm %d", id), ctl: ctl, columns: logColumns()}
	return a.open(ctx, s, func() {
		a.logs = s
		a.logActions = actions.New(ctl, api.LogID, a.logger)
	})
}

func (a *App) Users(ctx context.Context) error {
	u, _ := a.currentUser()
	if !api.CanViewUsers(u) {
		return errNotAllowed
	}
	ctl := a.api.Users(a.listOptions()...)
	s := &listScreen[models.User]{title: "users", ctl: ctl, columns: userColumns()}
	return a.open(ctx, s, func() {
		a.users = s
		a.userActions = actions.New(ctl, api.UserID, a.logger)
	})
}

// withScreen runs fn on the open screen and renders it afterwards.
func (a *App) withScreen(fn func(s screen) error) error {
	s := a.current()
	if s == nil {
		return errNoScreen
	}
	if err := fn(s); err != nil {
		return err
	}
	s.render(a.out)
	return nil
}

func (a *App) Page(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: usage: page <n>", errBadArgs)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %q is not a page number", errBadArgs, args[0])
	}
	return a.withScreen(func(s screen) error { return s.setPage(ctx, n) })
}

func (a *App) Next(ctx context.Context) error {
	return a.withScreen(func(s screen) error { return s.next(ctx) })
}

func (a *App) Prev(ctx context.Context) error {
	return a.withScreen(func(s screen) error { return s.prev(ctx) })
}

func (a *App) Size(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: usage: size <n>", errBadArgs)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %q is not a page size", errBadArgs, args[0])
	}
	return a.withScreen(func(s screen) error { return s.setSize(ctx, n) })
}

// Sort toggles the column when no order is given.
func (a *App) Sort(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: usage: sort <key> [asc|desc]", errBadArgs)
	}
	order := ""
	if len(args) == 2 {
		order = args[1]
		if order != "asc" && order != "desc" {
			return fmt.Errorf("%w: order must be asc or desc", errBadArgs)
		}
	}
	return a.withScreen(func(s screen) error { return s.sort(args[0], order) })
}

func (a *App) Filter(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: filter key=value ...", errBadArgs)
	}
	patch, err := ParseAssignments(args)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadArgs, err)
	}
	return a.withScreen(func(s screen) error { return s.filter(ctx, patch) })
}

func (a *App) Clear(ctx context.Context) error {
	return a.withScreen(func(s screen) error { return s.clear(ctx) })
}

func findByID[T any](items []T, id int64, key func(T) int64) (T, bool) {
	for _, it := range items {
		if key(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Ack acknowledges an alert on the open log page.
func (a *App) Ack(ctx context.Context, args []string) error {
	id, err := parseID(args, "ack <log-id>")
	if err != nil {
		return err
	}
	a.mu.Lock()
	logs, ex := a.logs, a.logActions
	a.mu.Unlock()
	if logs == nil {
		return errNotLogs
	}
	entry, ok := findByID(logs.ctl.Items(), id, api.LogID)
	if !ok {
		return fmt.Errorf("log %d: %w", id, errNotOnPage)
	}
	u, _ := a.currentUser()
	if err := a.api.Acknowledge(ctx, ex, u, entry); err != nil {
		return err
	}
	logs.render(a.out)
	return nil
}

// Role changes a user's role on the open user page.
func (a *App) Role(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: usage: role <user-id> <operator|admin>", errBadArgs)
	}
	id, err := parseID(args, "")
	if err != nil {
		return err
	}
	a.mu.Lock()
	users, ex := a.users, a.userActions
	a.mu.Unlock()
	if users == nil {
		return errNotUsers
	}
	target, ok := findByID(users.ctl.Items(), id, api.UserID)
	if !ok {
		return fmt.Errorf("user %d: %w", id, errNotOnPage)
	}
	u, _ := a.currentUser()
	if err := a.api.SetRole(ctx, ex, u, target, models.Role(args[1])); err != nil {
		return err
	}
	users.render(a.out)
	return nil
}

// DelUser deletes a user from the open user page.
func (a *App) DelUser(ctx context.Context, args []string) error {
	id, err := parseID(args, "deluser <user-id>")
	if err != nil {
		return err
	}
	a.mu.Lock()
	users, ex := a.users, a.userActions
	a.mu.Unlock()
	if users == nil {
		return errNotUsers
	}
	loaded := users.ctl.Items()
	target, ok := findByID(loaded, id, api.UserID)
	if !ok {
		return fmt.Errorf("user %d: %w", id, errNotOnPage)
	}
	u, _ := a.currentUser()
	if err := a.api.RemoveUser(ctx, ex, u, target, loaded); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("User %s deleted.", target.Username))
	users.render(a.out)
	return nil
}

// Show prints one device.
func (a *App) Show(ctx context.Context, args []string) error {
	id, err := parseID(args, "show <atm-id>")
	if err != nil {
		return err
	}
	atm, err := a.api.GetATM(ctx, id)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			return fmt.Errorf("ATM %d not found", id)
		}
		return err
	}
	fmt.Fprintf(a.out, "ATM %d\n  uid:      %s\n  location: %s\n  ip:       %s\n  status:   %s\n  created:  %s\n  updated:  %s\n",
		atm.ID, atm.UID, orDash(atm.LocationDescription), orDash(atm.IPAddress), atm.Status.Name,
		fmtTime(atm.CreatedAt), fmtTime(atm.UpdatedAt))
	return nil
}

func (a *App) Statuses(ctx context.Context) error {
	statuses, err := a.api.ATMStatuses(ctx)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		fmt.Fprintf(a.out, "%d\t%s\t%s\n", s.ID, s.Name, orDash(s.Description))
	}
	return nil
}
