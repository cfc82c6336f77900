// Package main is the control-plane process: the admin-facing HTTP API
// for editing environments, audiences, experiments, variants and
// allocations, publishing compiled config snapshots to the object store.
//
// Startup:
//  1. Load ControlPlaneConfig from the environment.
//  2. Initialize the Prometheus registry.
//  3. Open the store (postgres or memory) and, for postgres, the shared
//     connection pool the audit sink also uses.
//  4. Build the object-store client and the publisher. Webhook dispatch
//     is opt-in and left nil here; operators that need it wire a
//     Publisher.Webhooks dispatcher from a static subscription list.
//  5. Start the HTTP API on CONTROL_PLANE_HTTP_ADDR and a metrics/pprof
//     server on METRICS_ADDR.
//  6. On SIGINT/SIGTERM, drain in-flight requests, close the audit
//     service and the database pool.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	flagforgedb "github.com/flagforge/flagforge/internal/db"

	"github.com/flagforge/flagforge/internal/audit"
	"github.com/flagforge/flagforge/internal/config"
	"github.com/flagforge/flagforge/internal/controlplane"
	"github.com/flagforge/flagforge/internal/objectstore"
	"github.com/flagforge/flagforge/internal/publish"
	"github.com/flagforge/flagforge/internal/store"
	"github.com/flagforge/flagforge/internal/telemetry"
)

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "control-plane").
		Logger()

	cfg, err := config.LoadControlPlaneConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	telemetry.Init()

	ctx := context.Background()

	st, pool, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("store")
	}
	if pool != nil {
		defer pool.Close()
	}

	objClient, err := objectstore.NewClient(cfg.ObjectStore.ClientConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("objectstore")
	}

	publisher := publish.NewPublisher(st, objClient)

	var auditSvc *audit.Service
	if pool != nil {
		auditSvc = audit.NewService(audit.NewPostgresSink(pool), nil, nil, nil, 1024)
		defer auditSvc.Close()
	} else {
		auditSvc = audit.NewService(discardSink{}, nil, nil, nil, 1024)
		defer auditSvc.Close()
	}

	srv := &controlplane.Server{
		Store:     st,
		Publisher: publisher,
		Audit:     auditSvc,
		Logger:    logger,
		AdminKey:  cfg.AdminAPIKey,
	}

	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("control-plane http server listening")
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("control-plane http server")
		}
	}()

	metricsSrv := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      metricsRouter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics/pprof server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("metrics server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("control-plane http server shutdown")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown")
	}
	logger.Info().Msg("servers stopped")
}

// openStore mirrors store.NewStore's switch but keeps hold of the pool
// when postgres is selected, since the audit sink needs to share it.
func openStore(ctx context.Context, cfg *config.ControlPlaneConfig) (store.Store, *pgxpool.Pool, error) {
	switch cfg.StoreType {
	case "memory":
		return store.NewMemoryStore(), nil, nil
	case "postgres":
		pool, err := flagforgedb.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgresStore(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", cfg.StoreType)
	}
}

func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug/pprof/", http.DefaultServeMux)
	return r
}

type discardSink struct{}

func (discardSink) Write(ctx context.Context, event audit.AuditEvent) error { return nil }
