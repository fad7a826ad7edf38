package httpapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, route and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks HTTP request latency by route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "speechd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// GenerationsTotal counts pipeline stage outcomes.
	// Labels: stage (topics, keywords, speech, associations),
	// source (backend, fallback).
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechd",
			Subsystem: "pipeline",
			Name:      "generations_total",
			Help:      "Total number of generation stage completions by source",
		},
		[]string{"stage", "source"},
	)

	// RateLimitRejections counts requests rejected by the token limiter.
	// Labels: window (minute, hour, day).
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speechd",
			Subsystem: "pipeline",
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of generation requests rejected by the token limiter",
		},
		[]string{"window"},
	)

	// SessionsCreated counts created sessions.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "speechd",
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Total number of sessions created",
		},
	)
)

func observeRequest(method, route string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// recordGeneration records a completed pipeline stage for metrics.
func recordGeneration(stage string, fromFallback bool) {
	source := "backend"
	if fromFallback {
		source = "fallback"
	}
	GenerationsTotal.WithLabelValues(stage, source).Inc()
}
