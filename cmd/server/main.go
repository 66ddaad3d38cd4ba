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

	"github.com/cenkalti/backoff/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/volumefi/curve-engine/internal/config"
	"github.com/volumefi/curve-engine/internal/engine"
	"github.com/volumefi/curve-engine/internal/limits"
	"github.com/volumefi/curve-engine/internal/metrics"
	"github.com/volumefi/curve-engine/internal/precision"
	"github.com/volumefi/curve-engine/internal/store"
	"github.com/volumefi/curve-engine/internal/trade"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "curve-engine",
		Short:         "Bonding-curve pricing and trading service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (json, yaml or toml)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("curve-engine failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// --- Initialize store ---
	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// --- Pricing engine ---
	prec, err := precision.New(cfg.PrecisionDigits)
	if err != nil {
		return err
	}
	eng := engine.New(prec)

	// --- Trade limits ---
	minReserveIn, maxHolding, err := cfg.TradeLimits()
	if err != nil {
		return err
	}
	lim := limits.New(minReserveIn, maxHolding)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()

	// --- Trade service ---
	tradeSvc := trade.NewService(st, eng, lim, wsHub)
	if err := tradeSvc.SyncMetrics(ctx); err != nil {
		slog.Warn("initial metrics sync failed", "err", err)
	}

	rl := trade.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"curve-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for trade and graduation events. Not throttled
		// or time-limited; connections are long-lived.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(rl.Middleware)
			r.Use(middleware.Timeout(30 * time.Second))
			tradeSvc.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return wsHub.Run(gCtx)
	})

	g.Go(func() error {
		slog.Info("curve-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Housekeeping: forget idle rate-limit buckets and refresh gauges.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if n := rl.Prune(10 * time.Minute); n > 0 {
					slog.Debug("pruned idle rate limiters", "count", n)
				}
				if err := tradeSvc.SyncMetrics(gCtx); err != nil {
					slog.Warn("metrics sync failed", "err", err)
				}
			}
		}
	})

	// Graceful shutdown.
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down curve-engine...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("curve-engine stopped")
	return nil
}

// openStore connects to PostgreSQL (with an optional Redis read-through
// cache) when configured, and falls back to the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return store.NewMemoryStore(), closeAll, nil
	}

	pool, err := retry(ctx, cfg.ConnectTimeout, "postgres", func() (*pgxpool.Pool, error) {
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	cleanup = append(cleanup, pool.Close)

	pg := store.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	var st store.Store = pg

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })

		if _, err := retry(ctx, cfg.ConnectTimeout, "redis", func() (string, error) {
			return rdb.Ping(ctx).Result()
		}); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
	}

	return st, closeAll, nil
}

func retry[T any](ctx context.Context, maxElapsed time.Duration, name string, op backoff.Operation[T]) (T, error) {
	notify := func(err error, next time.Duration) {
		slog.Warn("connection attempt failed, retrying", "target", name, "err", err, "backoff", next.String())
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(notify))
}
