package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	ATMs(ctx context.Context) error
	Logs(ctx context.Context, args []string) error
	Users(ctx context.Context) error
	Page(ctx context.Context, args []string) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	Size(ctx context.Context, args []string) error
	Sort(ctx context.Context, args []string) error
	Filter(ctx context.Context, args []string) error
	Clear(ctx context.Context) error
	Ack(ctx context.Context, args []string) error
	Role(ctx context.Context, args []string) error
	DelUser(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Statuses(ctx context.Context) error
	ATM(ctx context.Context, args []string) error
	Levels(ctx context.Context) error
	Types(ctx context.Context) error
	Log(ctx context.Context, args []string) error
}

const (
	helpAnonymous = "Available commands: register, login, exit"
	helpSignedIn  = "Available commands: whoami, atms, logs <atm-id>, users, page <n>, next, prev, size <n>, " +
		"sort <key>, filter k=v..., clear, ack <log-id>, role <user-id> <role>, deluser <user-id>, " +
		"show <atm-id>, statuses, atm add|edit|rm ..., levels, types, log <log-id>, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the fleet console.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF
// or when the user types "exit" or "quit".
//
// Commands other than help, register, login and exit need a signed-in
// session. Errors returned by handlers are printed; none is dropped.
func runREPL(parent context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("atm> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		ctx := logging.ContextWith(parent, "command", cmd)

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpAnonymous)
			}
			continue
		case "register":
			report(a.Register(ctx))
			continue
		case "login":
			report(a.Login(ctx))
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if !a.isLoggedIn() {
			if isKnown(cmd) {
				printlnFn("Please log in first.")
			} else {
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		var err error
		switch cmd {
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.WhoAmI(ctx)
		case "atms":
			err = a.ATMs(ctx)
		case "logs":
			err = a.Logs(ctx, args)
		case "users":
			err = a.Users(ctx)
		case "page":
			err = a.Page(ctx, args)
		case "next", "n":
			err = a.Next(ctx)
		case "prev", "p":
			err = a.Prev(ctx)
		case "size":
			err = a.Size(ctx, args)
		case "sort":
			err = a.Sort(ctx, args)
		case "filter":
			err = a.Filter(ctx, args)
		case "clear":
			err = a.Clear(ctx)
		case "ack":
			err = a.Ack(ctx, args)
		case "role":
			err = a.Role(ctx, args)
		case "deluser":
			err = a.DelUser(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "statuses":
			err = a.Statuses(ctx)
		case "atm":
			err = a.ATM(ctx, args)
		case "levels":
			err = a.Levels(ctx)
		case "types":
			err = a.Types(ctx)
		case "log":
			err = a.Log(ctx, args)
		default:
			printlnFn("Unknown command:", cmd)
			continue
		}
		report(err)
	}
}

var knownCommands = map[string]bool{
	"logout": true, "whoami": true, "atms": true, "logs": true, "users": true,
	"page": true, "next": true, "n": true, "prev": true, "p": true, "size": true,
	"sort": true, "filter": true, "clear": true, "ack": true, "role": true,
	"deluser": true, "show": true, "statuses": true, "atm": true, "levels": true,
	"types": true, "log": true,
}

func isKnown(cmd string) bool { return knownCommands[cmd] }

func report(err error) {
	if err != nil {
		printlnFn("Error:", describe(err))
	}
}
