package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/speechloop/speechd/internal/genai"
	"github.com/speechloop/speechd/internal/kvstore"
)

// brokenStore fails every operation, for fail-open tests.
type brokenStore struct{}

var errStoreDown = errors.New("connection refused")

func (brokenStore) Ping(ctx context.Context) error { return errStoreDown }
func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errStoreDown
}
func (brokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errStoreDown
}
func (brokenStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, errStoreDown
}
func (brokenStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, errStoreDown
}
func (brokenStore) Delete(ctx context.Context, key string) error { return errStoreDown }
func (brokenStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return 0, errStoreDown
}
func (brokenStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errStoreDown
}
func (brokenStore) Close() error { return nil }

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, kvstore.Store, *time.Time) {
	t.Helper()
	store, err := kvstore.New(kvstore.DriverMemory)
	require.NoError(t, err)

	l := New(store, cfg, zap.NewNop())
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	return l, store, &now
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("allows under budget", func(t *testing.T) {
		l, _, _ := newTestLimiter(t, Config{PerMinute: 1000})
		assert.NoError(t, l.Check(ctx, 500))
	})

	t.Run("rejects when a full bucket would be exceeded", func(t *testing.T) {
		l, _, _ := newTestLimiter(t, Config{PerMinute: 1000})

		l.Record(ctx, genai.Usage{TotalTokens: 1000})

		err := l.Check(ctx, 1)
		var rle *RateLimitError
		require.ErrorAs(t, err, &rle)
		assert.Equal(t, "minute", rle.Window)
		assert.Equal(t, 1000, rle.Limit)
		assert.LessOrEqual(t, rle.ResetIn, time.Minute)
	})

	t.Run("allows again after the window rolls over", func(t *testing.T) {
		l, _, now := newTestLimiter(t, Config{PerMinute: 1000})

		l.Record(ctx, genai.Usage{TotalTokens: 1000})
		require.Error(t, l.Check(ctx, 1))

		*now = now.Add(time.Minute)
		assert.NoError(t, l.Check(ctx, 1))
	})

	t.Run("reports the most restrictive window", func(t *testing.T) {
		l, _, _ := newTestLimiter(t, Config{PerMinute: 10_000, PerHour: 500, PerDay: 600})

		l.Record(ctx, genai.Usage{TotalTokens: 550})

		err := l.Check(ctx, 100)
		var rle *RateLimitError
		require.ErrorAs(t, err, &rle)
		assert.Equal(t, "hour", rle.Window)
		assert.Equal(t, -50, rle.Remaining)
	})

	t.Run("fails open when the store is down", func(t *testing.T) {
		l := New(brokenStore{}, Config{PerMinute: 1}, zap.NewNop())
		assert.NoError(t, l.Check(ctx, 100))
	})

	t.Run("exact budget boundary", func(t *testing.T) {
		l, _, _ := newTestLimiter(t, Config{PerMinute: 1000})

		l.Record(ctx, genai.Usage{TotalTokens: 900})
		assert.NoError(t, l.Check(ctx, 100), "usage+estimate == limit is allowed")
		assert.Error(t, l.Check(ctx, 101))
	})
}

func TestRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("increments every window bucket", func(t *testing.T) {
		l, store, now := newTestLimiter(t, Config{})

		l.Record(ctx, genai.Usage{TotalTokens: 123})

		for _, w := range windows {
			raw, err := store.Get(ctx, bucketKey(w, *now))
			require.NoError(t, err, w.name)
			assert.Equal(t, "123", string(raw), w.name)

			ttl, err := store.TTL(ctx, bucketKey(w, *now))
			require.NoError(t, err, w.name)
			assert.Equal(t, w.size+bucketExpiryBuffer, ttl, w.name)
		}
	})

	t.Run("ignores zero usage", func(t *testing.T) {
		l, store, now := newTestLimiter(t, Config{})

		l.Record(ctx, genai.Usage{})

		_, err := store.Get(ctx, bucketKey(windows[0], *now))
		assert.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("store failure does not panic or propagate", func(t *testing.T) {
		l := New(brokenStore{}, Config{}, zap.NewNop())
		l.Record(ctx, genai.Usage{TotalTokens: 10})
	})
}

func TestFormatReset(t *testing.T) {
	assert.Equal(t, "45秒", FormatReset(45*time.Second))
	assert.Equal(t, "2分", FormatReset(90*time.Second))
	assert.Equal(t, "1時間", FormatReset(3600*time.Second))
	assert.Equal(t, "2時間", FormatReset(5000*time.Second))
}

func TestRateLimitErrorMessage(t *testing.T) {
	e := &RateLimitError{Window: "minute", Limit: 1000, ResetIn: 30 * time.Second}
	assert.Contains(t, e.Error(), "30秒")
	assert.Contains(t, e.Error(), "分間")
}
