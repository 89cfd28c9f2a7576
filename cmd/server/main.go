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
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tripshare/internal/auth"
	"github.com/mmynk/tripshare/internal/config"
	"github.com/mmynk/tripshare/internal/fx"
	"github.com/mmynk/tripshare/internal/gamesync"
	"github.com/mmynk/tripshare/internal/metrics"
	"github.com/mmynk/tripshare/internal/middleware"
	"github.com/mmynk/tripshare/internal/relay"
	"github.com/mmynk/tripshare/internal/service"
	"github.com/mmynk/tripshare/internal/storage"
	"github.com/mmynk/tripshare/internal/storage/postgres"
	"github.com/mmynk/tripshare/internal/storage/sqlite"
	"github.com/mmynk/tripshare/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		slog.Info("Using PostgreSQL storage")
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		slog.Info("Using SQLite storage", "database", cfg.DBPath)
		return sqlite.New(cfg.DBPath)
	}
}

func openTransport(ctx context.Context, cfg config.Config) (gamesync.Transport, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Info("Realtime relay using in-process hub")
		return gamesync.NewMemoryTransport(0), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	slog.Info("Realtime relay using Redis pub/sub", "addr", cfg.RedisAddr)
	return gamesync.NewRedisTransport(client), func() { client.Close() }, nil
}

func run(ctx context.Context, cfg config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	transport, closeTransport, err := openTransport(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTransport()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, slog.Default())
	tripService := service.NewTripService(store, fx.New(cfg.FXBaseURL, cfg.FXTimeout), m, slog.Default())

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(m),
		middleware.RequireAuth(jwtManager, service.RegisterProcedure, service.LoginProcedure),
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, loggingMiddleware, corsMiddleware)
	for path, h := range authService.Handlers(interceptors) {
		r.Handle(path, h)
	}
	for path, h := range tripService.Handlers(interceptors) {
		r.Handle(path, h)
	}
	relay.New(transport, slog.Default(), m, cfg.AllowedOrigins...).Mount(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// h2c serves HTTP/2 without TLS, which Connect and gRPC clients need.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
			"request_id", chimw.GetReqID(r.Context()),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
