// Package metadata persists small key/value facts the CLI keeps between runs,
// such as device trust tokens and the last username. Nothing stored here is
// key material.
package metadata

import (
	"context"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// TrustTokenKey is the key under which a user's device trust token is kept.
func TrustTokenKey(username string) string { return "trust/" + username }

const LastUsernameKey = "last_username"
