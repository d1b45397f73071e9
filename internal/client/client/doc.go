// Package client is the CLI's connection to the vault server.
//
// GRPCClient wraps the generated-style api.VaultClient with three unary
// interceptors: the session token is attached from metadata once set, a
// default deadline is applied, and status errors are mapped back to the
// common sentinels (plus ErrUnavailable and ErrRateLimited). It also
// implements breach.Ranger by proxying range lookups through the server.
//
// InitDatabase opens the local SQLite state file and applies the embedded
// goose migrations.
package client
