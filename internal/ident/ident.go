// Package ident generates short URL-safe identifiers for sessions and
// participants, with collision avoidance against the key-value store.
package ident

import (
	"context"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrCapacityExhausted indicates repeated id collisions. Callers must
// abort the enclosing operation rather than retry with the same prefix.
var ErrCapacityExhausted = errors.New("ident: exhausted unique id attempts")

const (
	// SessionIDLength matches the short shareable session ids.
	SessionIDLength = 10

	// ParticipantIDLength is used for per-participant ids inside a session.
	ParticipantIDLength = 8

	// DefaultMaxAttempts bounds collision retries in AllocateUnique.
	DefaultMaxAttempts = 10
)

// Exister is the subset of the store needed for collision checks.
type Exister interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// Generate returns a random URL-safe identifier of the given length.
func Generate(length int) (string, error) {
	return gonanoid.New(length)
}

// AllocateUnique generates ids until one has no record under
// keyPrefix+id, or maxAttempts collisions occur in a row.
// A store error during the existence check is treated as a collision so a
// flaky store cannot hand out a possibly-duplicate id.
func AllocateUnique(ctx context.Context, store Exister, keyPrefix string, length, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for i := 0; i < maxAttempts; i++ {
		id, err := Generate(length)
		if err != nil {
			return "", fmt.Errorf("ident: generate: %w", err)
		}

		exists, err := store.Exists(ctx, keyPrefix+id)
		if err != nil {
			continue
		}
		if !exists {
			return id, nil
		}
	}

	return "", ErrCapacityExhausted
}
