package ident

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExister scripts the Exists responses per call.
type stubExister struct {
	calls   int
	results []bool
	err     error
}

func (s *stubExister) Exists(ctx context.Context, key string) (bool, error) {
	defer func() { s.calls++ }()
	if s.err != nil {
		return false, s.err
	}
	if s.calls < len(s.results) {
		return s.results[s.calls], nil
	}
	return false, nil
}

func TestGenerate(t *testing.T) {
	t.Run("honors requested length", func(t *testing.T) {
		id, err := Generate(SessionIDLength)
		require.NoError(t, err)
		assert.Len(t, id, SessionIDLength)
	})

	t.Run("uses a URL-safe alphabet", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			id, err := Generate(ParticipantIDLength)
			require.NoError(t, err)
			for _, r := range id {
				ok := r == '-' || r == '_' ||
					(r >= '0' && r <= '9') ||
					(r >= 'A' && r <= 'Z') ||
					(r >= 'a' && r <= 'z')
				assert.True(t, ok, "unexpected rune %q in id %q", r, id)
			}
		}
	})

	t.Run("ids do not repeat", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id, err := Generate(SessionIDLength)
			require.NoError(t, err)
			assert.False(t, seen[id], "duplicate id %q", id)
			seen[id] = true
		}
	})
}

func TestAllocateUnique(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first non-colliding id", func(t *testing.T) {
		store := &stubExister{results: []bool{true, true, false}}

		id, err := AllocateUnique(ctx, store, "session:", SessionIDLength, DefaultMaxAttempts)
		require.NoError(t, err)
		assert.Len(t, id, SessionIDLength)
		assert.Equal(t, 3, store.calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		store := &stubExister{results: make([]bool, 10)}
		for i := range store.results {
			store.results[i] = true
		}

		_, err := AllocateUnique(ctx, store, "session:", SessionIDLength, 10)
		assert.ErrorIs(t, err, ErrCapacityExhausted)
		assert.Equal(t, 10, store.calls)
	})

	t.Run("store errors count as collisions", func(t *testing.T) {
		store := &stubExister{err: errors.New("connection refused")}

		_, err := AllocateUnique(ctx, store, "session:", SessionIDLength, 3)
		assert.ErrorIs(t, err, ErrCapacityExhausted)
		assert.Equal(t, 3, store.calls)
	})

	t.Run("defaults max attempts when non-positive", func(t *testing.T) {
		store := &stubExister{}

		id, err := AllocateUnique(ctx, store, "session:", SessionIDLength, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})
}
