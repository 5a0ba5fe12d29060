// Package kv provides a small key-value abstraction for short-lived
// values such as OAuth state.  Redis backs it in production; an in-memory
// store takes over when Redis is not available.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal key-value interface.  A zero TTL means no expiry.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns ErrNotFound for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Take returns the value and removes the key in one step.
	Take(ctx context.Context, key string) ([]byte, error)
}
