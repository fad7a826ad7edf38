package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates memory store", func(t *testing.T) {
		store, err := New(DriverMemory)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("redis driver requires client", func(t *testing.T) {
		_, err := New(DriverRedis)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := New(Driver("etcd"))
		assert.ErrorIs(t, err, ErrInvalidDriver)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set and get round trip", func(t *testing.T) {
		store, err := New(DriverMemory)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

		val, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), val)
	})

	t.Run("get missing key returns ErrNotFound", func(t *testing.T) {
		store, err := New(DriverMemory)
		require.NoError(t, err)

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired key is evicted", func(t *testing.T) {
		store := newMemoryStore()
		now := time.Now()
		store.now = func() time.Time { return now }

		require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

		now = now.Add(2 * time.Minute)

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)

		exists, err := store.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ttl reports remaining lifetime", func(t *testing.T) {
		store := newMemoryStore()
		now := time.Now()
		store.now = func() time.Time { return now }

		require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Hour))

		ttl, err := store.TTL(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, time.Hour, ttl)

		_, err = store.TTL(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("incrby creates and accumulates", func(t *testing.T) {
		store, err := New(DriverMemory)
		require.NoError(t, err)

		n, err := store.IncrBy(ctx, "counter", 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), n)

		n, err = store.IncrBy(ctx, "counter", 50)
		require.NoError(t, err)
		assert.Equal(t, int64(150), n)
	})

	t.Run("expire bounds counter lifetime", func(t *testing.T) {
		store := newMemoryStore()
		now := time.Now()
		store.now = func() time.Time { return now }

		_, err := store.IncrBy(ctx, "counter", 10)
		require.NoError(t, err)
		require.NoError(t, store.Expire(ctx, "counter", time.Minute))

		now = now.Add(90 * time.Second)

		n, err := store.IncrBy(ctx, "counter", 10)
		require.NoError(t, err)
		assert.Equal(t, int64(10), n, "expired counter restarts from zero")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store, err := New(DriverMemory)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, store.Delete(ctx, "k"))
		require.NoError(t, store.Delete(ctx, "k"))

		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	t.Run("round trip", func(t *testing.T) {
		store, err := New(DriverMemory)
		require.NoError(t, err)

		in := record{Name: "minute", Count: 3}
		require.NoError(t, SetJSON(ctx, store, "r", in, time.Hour))

		var out record
		require.NoError(t, GetJSON(ctx, store, "r", &out))
		assert.Equal(t, in, out)
	})

	t.Run("malformed value surfaces error", func(t *testing.T) {
		store, err := New(DriverMemory)
		require.NoError(t, err)

		require.NoError(t, store.Set(ctx, "r", []byte("{not json"), 0))

		var out record
		err = GetJSON(ctx, store, "r", &out)
		assert.Error(t, err)
	})
}
