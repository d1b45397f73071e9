// Package cli provides the interactive SecureVault command-line client.
//
// NewApp wires configuration, the local state database, the gRPC client
// and the auth and vault services. App.Run starts a background session
// status poller and a REPL that dispatches through a command table; type
// "help" for the list.
//
// Secrets are decrypted only on this side. Item policies (master password
// re-entry, allowed hours, locked-until dates, honey tokens and clipboard
// auto-wipe) are evaluated locally before anything is shown or copied. The
// session is locked, and every key wiped, after the idle window or when the
// server reports the session as invalid. A server-side lockdown disables
// reveal commands for the rest of the session.
package cli
