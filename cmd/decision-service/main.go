// Package main is a decision-fleet node: a stateless edge HTTP service
// that polls the object store for each configured environment's compiled
// snapshot and answers /decide assignment queries against whichever
// snapshot is currently installed.
//
// Startup:
//  1. Load DecisionConfig from the environment.
//  2. Build the object-store client and the configstore.Store poller.
//  3. Register every environment named in DECISION_ENVIRONMENTS and start
//     the poll loop; environments not listed register lazily on first
//     /decide request.
//  4. Start the decision HTTP API and a metrics server.
//  5. On SIGINT/SIGTERM, stop the poll loop and drain in-flight requests.
package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/flagforge/flagforge/internal/config"
	"github.com/flagforge/flagforge/internal/configstore"
	"github.com/flagforge/flagforge/internal/decisionapi"
	"github.com/flagforge/flagforge/internal/objectstore"
	"github.com/flagforge/flagforge/internal/telemetry"
)

const fetchTimeout = 3 * time.Second

func main() {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "decision-service").
		Logger()

	cfg, err := config.LoadDecisionConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	telemetry.Init()

	objClient, err := objectstore.NewClient(cfg.ObjectStore.ClientConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("objectstore")
	}

	configs := configstore.New(objClient, fetchTimeout)
	for _, env := range cfg.Environments {
		configs.Register(env)
	}

	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	go configs.RunPollLoop(pollCtx, cfg.PollInterval)

	srv := &decisionapi.Server{Configs: configs, Logger: logger}

	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("decision http server listening")
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("decision http server")
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

	stopPolling()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("decision http server shutdown")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown")
	}
	logger.Info().Msg("servers stopped")
}

func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/debug/pprof/", http.DefaultServeMux)
	return r
}
