package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tabsplit/internal/cache"
	"github.com/mmynk/tabsplit/internal/config"
	"github.com/mmynk/tabsplit/internal/metrics"
	"github.com/mmynk/tabsplit/internal/middleware"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/service"
	"github.com/mmynk/tabsplit/internal/session"
	"github.com/mmynk/tabsplit/internal/storage"
	"github.com/mmynk/tabsplit/internal/storage/sqlite"
	"github.com/mmynk/tabsplit/pkg/api/apiconnect"
	"github.com/mmynk/tabsplit/pkg/logging"
)

// Redis circuit breaker settings.
const (
	breakerFailures = 5
	breakerOpenFor  = 30 * time.Second
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(getEnv("TABSPLIT_CONFIG", ""))
	if err != nil {
		return err
	}

	// Setup structured logging
	logging.Configure(cfg.Logging.Level, cfg.Logging.Format)

	currency, err := money.Lookup(cfg.Split.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("split.default_currency: %w", err)
	}

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Storage.Path)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	resultCache, closeCache, err := newCache(cfg.Cache, m)
	if err != nil {
		return err
	}
	defer closeCache()
	slog.Info("Memoization cache initialized", "backend", cfg.Cache.Backend)

	sessionSvc := service.NewSessionService(store,
		service.WithMemoizer(cache.NewMemoizer(resultCache, m)),
		service.WithSessionMetrics(m),
		service.WithPolicy(session.Policy{RequireFullClaims: cfg.Split.RequireFullClaims}),
		service.WithDefaultCurrency(currency),
	)
	groupSvc := service.NewGroupService(store, currency)

	handler := newHandler(sessionSvc, groupSvc, store, reg, m)

	srv := &http.Server{
		Addr: cfg.Server.Address,
		// Wrap with h2c for HTTP/2 without TLS (required for Connect)
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// newCache builds the configured memoization backend. The returned func
// releases its connections.
func newCache(cfg config.CacheConfig, m *metrics.Metrics) (cache.Cache, func(), error) {
	switch cfg.Backend {
	case config.CacheMemory:
		return cache.NewMemory(cfg.Capacity), func() {}, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		c := cache.NewRedis(client,
			cache.WithPrefix(cfg.Prefix),
			cache.WithTTL(cfg.TTL),
			cache.WithBreaker(breakerFailures, breakerOpenFor),
			cache.WithMetrics(m),
		)
		return c, func() { client.Close() }, nil
	case config.CacheNone:
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type pinger interface {
	Ping() error
}

// newHandler assembles the HTTP routes: both Connect services, /metrics and
// /healthz.
func newHandler(sessions apiconnect.SessionServiceHandler, groups apiconnect.GroupServiceHandler, store storage.Store, reg *prometheus.Registry, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.MetricsInterceptor(m),
	)

	// Register Connect services
	sessionPath, sessionHandler := apiconnect.NewSessionServiceHandler(sessions, interceptors)
	mux.Handle(sessionPath, sessionHandler)

	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(groups, interceptors)
	mux.Handle(groupPath, groupHandler)

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(pinger); ok {
			if err := p.Ping(); err != nil {
				slog.Error("Health check failed", "error", err)
				http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	// Add logging and CORS middleware
	return loggingMiddleware(corsMiddleware(mux))
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms, X-Request-Id")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, X-Request-Id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
