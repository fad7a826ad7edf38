// Package ratelimit bounds aggregate token spend against the generative
// backend across minute, hour, and day windows.
//
// Counters are fixed buckets keyed by window start, an approximation of true
// sliding-window limiting: a burst straddling a bucket edge can exceed the
// nominal rate by up to 2x. Checks use a static per-call estimate; recording
// uses the actual usage reported by the backend.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/speechloop/speechd/internal/genai"
	"github.com/speechloop/speechd/internal/kvstore"
)

// Config holds per-window token budgets.
type Config struct {
	PerMinute int `koanf:"per_minute"`
	PerHour   int `koanf:"per_hour"`
	PerDay    int `koanf:"per_day"`
}

// DefaultConfig mirrors the free-tier budgets the service was tuned for.
func DefaultConfig() Config {
	return Config{
		PerMinute: 10_000,
		PerHour:   100_000,
		PerDay:    1_000_000,
	}
}

// window is one fixed bucket series.
type window struct {
	name string
	size time.Duration
}

var windows = []window{
	{name: "minute", size: time.Minute},
	{name: "hour", size: time.Hour},
	{name: "day", size: 24 * time.Hour},
}

// bucketExpiryBuffer keeps a bucket alive slightly past its window so a
// straggling read never sees a half-expired counter.
const bucketExpiryBuffer = 60 * time.Second

// RateLimitError reports which window rejected the call and when it resets.
type RateLimitError struct {
	Window    string
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("APIのトークン制限に達しました。%s後に再度お試しください。（%s制限）",
		FormatReset(e.ResetIn), windowLabel(e.Window))
}

func windowLabel(name string) string {
	switch name {
	case "minute":
		return "分間"
	case "hour":
		return "時間"
	default:
		return "日間"
	}
}

// FormatReset renders a reset countdown for user display.
func FormatReset(d time.Duration) string {
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%d秒", secs)
	case secs < 3600:
		return fmt.Sprintf("%d分", (secs+59)/60)
	default:
		return fmt.Sprintf("%d時間", (secs+3599)/3600)
	}
}

// Limiter tracks global token consumption in the store.
type Limiter struct {
	store  kvstore.Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Limiter. Zero budgets fall back to defaults.
func New(store kvstore.Store, cfg Config, logger *zap.Logger) *Limiter {
	def := DefaultConfig()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.PerHour <= 0 {
		cfg.PerHour = def.PerHour
	}
	if cfg.PerDay <= 0 {
		cfg.PerDay = def.PerDay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (l *Limiter) limitFor(w window) int {
	switch w.name {
	case "minute":
		return l.cfg.PerMinute
	case "hour":
		return l.cfg.PerHour
	default:
		return l.cfg.PerDay
	}
}

// bucketKey is the counter key for a window at the given time.
func bucketKey(w window, now time.Time) string {
	windowStart := now.Unix() / int64(w.size.Seconds()) * int64(w.size.Seconds())
	return fmt.Sprintf("tokens:%s:global:%d", w.name, windowStart)
}

// resetIn is the time until the window's current bucket rolls over.
func resetIn(w window, now time.Time) time.Duration {
	elapsed := now.Unix() % int64(w.size.Seconds())
	return time.Duration(int64(w.size.Seconds())-elapsed) * time.Second
}

// usage reads the current bucket counter. Store failures read as zero:
// the limiter fails open rather than blocking generation when the store is
// down, matching the store's own best-effort nature.
func (l *Limiter) usage(ctx context.Context, w window, now time.Time) int {
	raw, err := l.store.Get(ctx, bucketKey(w, now))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			l.logger.Warn("rate limit read failed", zap.String("window", w.name), zap.Error(err))
		}
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0
	}
	return n
}

// Check rejects the call when any window's usage plus the estimate would
// exceed its budget. The returned error is a *RateLimitError describing the
// most restrictive window.
func (l *Limiter) Check(ctx context.Context, estimatedTokens int) error {
	now := l.now()

	var worst *RateLimitError
	for _, w := range windows {
		used := l.usage(ctx, w, now)
		limit := l.limitFor(w)
		if used+estimatedTokens <= limit {
			continue
		}
		e := &RateLimitError{
			Window:    w.name,
			Limit:     limit,
			Remaining: limit - used,
			ResetIn:   resetIn(w, now),
		}
		if worst == nil || e.Remaining < worst.Remaining {
			worst = e
		}
	}

	if worst != nil {
		return worst
	}
	return nil
}

// Record adds the actual reported usage to every window's current bucket.
// Best effort: store failures are logged, never propagated.
func (l *Limiter) Record(ctx context.Context, usage genai.Usage) {
	tokens := usage.TotalTokens
	if tokens <= 0 {
		return
	}

	now := l.now()
	for _, w := range windows {
		key := bucketKey(w, now)
		if _, err := l.store.IncrBy(ctx, key, int64(tokens)); err != nil {
			l.logger.Warn("rate limit record failed", zap.String("window", w.name), zap.Error(err))
			continue
		}
		if err := l.store.Expire(ctx, key, w.size+bucketExpiryBuffer); err != nil {
			l.logger.Warn("rate limit expire failed", zap.String("window", w.name), zap.Error(err))
		}
	}
}
