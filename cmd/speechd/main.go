// Speechd is the backend for a Chaplin-style speech practice app.
//
// It serves session lifecycle and content generation over HTTP: sessions are
// stored in Redis (or in memory for development), speech topics, keywords,
// and example speeches are generated through Gemini with static fallbacks
// when the backend is unavailable.
//
// Usage:
//
//	# Start server with defaults
//	speechd
//
//	# Configure via file and environment
//	speechd -config /etc/speechd/config.yaml
//	SERVER_PORT=3000 GEMINI_API_KEY=... speechd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/speechloop/speechd/internal/config"
	"github.com/speechloop/speechd/internal/genai"
	"github.com/speechloop/speechd/internal/httpapi"
	"github.com/speechloop/speechd/internal/kvstore"
	"github.com/speechloop/speechd/internal/pipeline"
	"github.com/speechloop/speechd/internal/ratelimit"
	"github.com/speechloop/speechd/internal/session"
	"github.com/speechloop/speechd/internal/share"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  speechd            Start the speechd server\n")
			fmt.Fprintf(os.Stderr, "  speechd version    Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("speechd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the speechd server and blocks until context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Connect to the key-value store (Redis or in-memory)
//  4. Wire session manager, rate limiter, generative backend, pipeline
//  5. Start HTTP server
//  6. Graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting speechd",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	store, err := initStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		// The store gate returns 503 per request; start anyway so the
		// service recovers when the store comes back.
		logger.Warn("store unreachable at startup", zap.Error(err))
	}

	sessions, err := session.NewManager(store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	limiter := ratelimit.New(store, cfg.RateLimit, logger)

	backend, err := initBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize generative backend: %w", err)
	}

	pl, err := pipeline.New(backend, sessions, limiter, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	shares := share.NewService(cfg.Share.BaseURL)

	srv, err := httpapi.NewServer(sessions, pl, shares, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
		zap.String("share_base_url", cfg.Share.BaseURL))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// initLogger initializes the structured logger from log config.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	var zc zap.Config
	if cfg.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// initStore creates the configured key-value store.
func initStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return kvstore.New(kvstore.DriverMemory)
	default:
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return kvstore.New(kvstore.DriverRedis, kvstore.WithRedisClient(redis.NewClient(opts)))
	}
}

// initBackend creates the Gemini backend, or a disabled stand-in when no
// API key is configured. With the disabled backend every generation call
// fails and the pipeline serves static fallback content.
func initBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (genai.Backend, error) {
	if cfg.Gemini.APIKey.Value() == "" {
		logger.Warn("no gemini api key configured, serving fallback content only")
		return disabledBackend{}, nil
	}

	return genai.NewClient(ctx, genai.Config{
		APIKey: cfg.Gemini.APIKey.Value(),
		Model:  cfg.Gemini.Model,
	}, logger)
}

type disabledBackend struct{}

func (disabledBackend) Generate(ctx context.Context, req genai.Request) (*genai.Result, error) {
	return nil, errors.New("generative backend disabled: no api key configured")
}
