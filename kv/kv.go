// Package kv provides the TTL'd key-value store abstraction for Jai Dee.
//
// This package defines the interface that storage drivers must implement
// to back the session store and the per-user turn lock. It enables support
// for multiple backends (Redis, in-process memory) through a small driver
// pattern.
//
// Implementations should be created using the driver-specific New() functions:
//   - github.com/jaidee-care/jaidee/kv/redisv9.New(client)
//   - github.com/jaidee-care/jaidee/kv/memory.New()
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// KV is the shared, externally durable key-value medium with per-key TTL.
//
// Session state and the turn lock both live behind this interface, so a
// single Redis instance (or an in-memory fake in tests) serves both.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value under key only if the key does not already exist.
	// It returns true if the value was stored. This is the atomic
	// set-if-not-exists-with-expiry primitive the turn lock is built on.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Expire resets the TTL on key. A missing key is not an error.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Scan returns the keys matching a glob pattern (e.g. "jaidee:session:*").
	Scan(ctx context.Context, pattern string) ([]string, error)
}
