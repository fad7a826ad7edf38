// Package kvstore provides the key-value storage boundary for speechd.
//
// Session records, participant content, and rate-limit counters all live in
// the same TTL-based keyspace. The Store interface keeps callers independent
// of the backing driver: Redis in production, in-memory for tests and
// single-process deployments.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key does not exist or has expired.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrInvalidConfig indicates a driver was created with missing options.
	ErrInvalidConfig = errors.New("kvstore: invalid configuration")

	// ErrInvalidDriver indicates an unknown driver type.
	ErrInvalidDriver = errors.New("kvstore: invalid driver type")
)

// Store defines the operations speechd needs from a key-value backend.
// All methods return explicit errors; callers decide whether a failure is
// fatal (session writes) or degradable (rate-limit bookkeeping).
type Store interface {
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Get returns the raw value for key. Returns ErrNotFound if the key
	// does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL stores
	// the key without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining time-to-live for key. Returns ErrNotFound
	// if the key does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// IncrBy atomically adds n to the integer stored at key, creating it
	// at zero if absent, and returns the new value.
	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	// Expire sets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases driver resources.
	Close() error
}

// GetJSON fetches key and unmarshals its value into v.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(errors.New("kvstore: malformed record"), err)
	}
	return nil
}

// SetJSON marshals v and stores it under key with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, ttl)
}
