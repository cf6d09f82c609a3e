// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/catalog"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/config"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/database"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/handler"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/logging"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/metrics"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/repository"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/service"
)

// stores is the storage backend selected by store.driver.
type stores struct {
	events     service.EventStore
	entries    service.EntryStore
	selections service.SelectionChecker
	usage      service.UsageRecorder
	ping       func(context.Context) error
	close      func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lineup: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// ── 1. Configuration and logging ─────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	// ── 2. Storage ───────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	usage, closeUsage, err := openUsage(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	defer closeUsage()

	collector, err := metrics.NewPrometheus(nil, "lineup")
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	rules := service.Rules{
		RequirePerformerName: cfg.Signup.RequirePerformerName,
		RequireSelection:     cfg.Signup.RequireSelection,
		MaxNameLength:        cfg.Signup.MaxNameLength,
	}
	h := handler.New(handler.Config{
		Events: service.NewEventService(st.events),
		Allocator: service.NewAllocator(st.events, st.entries, st.selections, usage, service.AllocatorOptions{
			MaxAttempts: cfg.Allocator.MaxAttempts,
			Rules:       rules,
			Metrics:     collector,
			Logger:      log,
		}),
		Admin: service.NewAdmin(st.events, st.entries, st.selections, service.AdminOptions{
			Rules:   rules,
			Metrics: collector,
			Logger:  log,
		}),
		Projector: service.NewProjector(st.events, st.entries, nil),
		QueueSize: cfg.Lineup.QueueSize,
		Logger:    log,
	})

	// ── 4. Build the router ──────────────────────────────────────────────
	opts := handler.RouterOptions{
		Metrics:   promhttp.Handler(),
		Ping:      st.ping,
		StaticDir: os.Getenv("STATIC_DIR"),
		Logger:    log,
	}
	if cfg.RateLimit.Enabled {
		opts.Limiter = handler.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	}

	// ── 5. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(h, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":  srv.Addr,
			"store": cfg.Store.Driver,
			"usage": cfg.Catalog.UsageBackend,
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Block until SIGINT, SIGTERM or a listener failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		mem := repository.NewMemory()
		entries := mem.Entries()
		cat := catalog.NewMemory(cfg.Catalog.Selections...)
		log.WithField("selections", len(cfg.Catalog.Selections)).Warn("using in-memory store, data is lost on restart")
		return &stores{
			events:     mem.Events(),
			entries:    entries,
			selections: cat,
			usage:      cat,
			ping:       entries.Ping,
			close:      func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("connected to PostgreSQL")

	entries := repository.NewEntryRepository(pool)
	cat := catalog.NewPostgres(pool)
	return &stores{
		events:     repository.NewEventRepository(pool),
		entries:    entries,
		selections: cat,
		usage:      cat,
		ping:       entries.Ping,
		close:      pool.Close,
	}, nil
}

// openUsage picks the recorder for selection usage counts. The postgres
// backend reuses whatever store.driver opened.
func openUsage(ctx context.Context, cfg *config.Config, st *stores, log logrus.FieldLogger) (service.UsageRecorder, func(), error) {
	switch cfg.Catalog.UsageBackend {
	case "none":
		return catalog.Nop{}, func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		log.WithField("addr", cfg.Redis.Addr).Info("recording selection usage in redis")
		return catalog.NewRedisUsage(rdb, cfg.Redis.Prefix), func() { _ = rdb.Close() }, nil
	default:
		return st.usage, func() {}, nil
	}
}
