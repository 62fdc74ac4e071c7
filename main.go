package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keyactivate/docs"
	"keyactivate/internal/activation"
	"keyactivate/internal/api"
	"keyactivate/internal/config"
	"keyactivate/internal/safego"
	"keyactivate/internal/store"
	"keyactivate/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

// registry is the storage the server runs on: the gorm store or its
// degraded stand-in.
type registry interface {
	activation.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Watch(func(next *config.Config) { telemetry.SetLevel(next.Logging.Level) }) {
		slog.Info("watching config file", "file", cfg.FileUsed())
	}
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}

	db := openRegistry(ctx, cfg.Database)
	defer db.Close()

	if cfg.Telemetry.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Telemetry.Metrics.Port)
		if s, ok := db.(*store.Store); ok {
			if sqlDB, err := s.DB.DB(); err == nil {
				telemetry.StartDBStatsCollector(sqlDB, ctx.Done())
			}
		}
	}

	docs.SwaggerInfo.Title = "Device Activation API"
	docs.SwaggerInfo.Version = version

	svc := activation.New(db, activation.WithTimeout(cfg.Database.QueryTimeout))
	r := api.NewRouter(svc, db, api.Options{APIDocs: cfg.APIDocs.Enabled})

	srv := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		slog.Info("server shut down gracefully")
		return nil
	case err := <-errCh:
		return err
	}
}

// openRegistry connects and bootstraps the registration table. Neither step
// is allowed to stop the server: an unreachable database yields a store
// that fails every activation, and a failed bootstrap leaves /readyz
// reporting unavailable.
func openRegistry(ctx context.Context, cfg config.DatabaseConfig) registry {
	openCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()

	s, err := store.Open(openCtx, store.Options{
		URL:          cfg.URL,
		AuthToken:    cfg.AuthToken,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		slog.Error("database unavailable, serving in degraded mode", "error", err)
		return store.NewUnavailable(err)
	}

	if err := s.Bootstrap(openCtx); err != nil {
		slog.Error("database init failed", "error", err)
	} else {
		slog.Info("registration table is ready", "table", "users")
	}
	return s
}

func startMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	safego.Go(func() {
		slog.Info("starting Prometheus metrics server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	})
	safego.Go(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
}
