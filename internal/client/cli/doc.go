// Package cli provides the interactive ATM fleet console.
//
// It wires configuration, the token store, the HTTP transport, the session
// manager and the list screens into a REPL. Typical flow: validate a stored
// token or prompt for credentials, open a list (atms, logs, users), page,
// filter and sort it, and run actions such as acknowledging alerts or
// changing roles.
//
// When the server rejects the session the console drops the open screen
// and asks the user to log in again.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
