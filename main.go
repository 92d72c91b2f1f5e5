package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/micic-mihajlo/semantic-cache/config"
	"github.com/micic-mihajlo/semantic-cache/internal/backend"
	"github.com/micic-mihajlo/semantic-cache/internal/breaker"
	"github.com/micic-mihajlo/semantic-cache/internal/embedding"
	"github.com/micic-mihajlo/semantic-cache/internal/httpapi"
	"github.com/micic-mihajlo/semantic-cache/internal/metrics"
	"github.com/micic-mihajlo/semantic-cache/internal/pipeline"
	"github.com/micic-mihajlo/semantic-cache/internal/store"
	"github.com/micic-mihajlo/semantic-cache/logger"
	"github.com/micic-mihajlo/semantic-cache/redisclient"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("semantic cache starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	rdb, err := redisclient.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid redis configuration")
	}
	if err := redisclient.Ping(ctx, rdb); err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	cancel()
	log.Info().Msg("redis connected")

	storeBreaker := breaker.New("store", breaker.Config{
		FailureThreshold: cfg.StoreBreakerFailureThreshold,
		RecoveryTimeout:  cfg.StoreBreakerRecoveryTimeout,
	})
	backendBreaker := breaker.New("backend", breaker.Config{
		FailureThreshold: cfg.BackendBreakerFailureThreshold,
		RecoveryTimeout:  cfg.BackendBreakerRecoveryTimeout,
	})

	cacheStore := store.NewRedisStore(rdb, storeBreaker, log, cfg.EmbeddingDim)
	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := cacheStore.EnsureSchema(schemaCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure cache index schema")
	}
	schemaCancel()

	embedPool := embedding.NewPool(embedding.NewHashEmbedder(cfg.EmbeddingDim), cfg.EmbeddingWorkers)
	embedPool.Start()
	defer embedPool.Stop()

	var generator backend.Generator
	if cfg.BackendAPIKey == "" {
		log.Warn().Msg("no BACKEND_API_KEY configured, using the echo backend")
		generator = backend.EchoGenerator{}
	} else {
		generator = backend.NewHTTPGenerator(cfg.BackendBaseURL, cfg.BackendAPIKey, cfg.BackendModel, cfg.BackendTimeout)
	}
	gatedGenerator := backend.NewBreakerGenerator(generator, backendBreaker)

	reg := metrics.New()

	pl := &pipeline.Pipeline{
		Embedder: embedPool,
		Store:    cacheStore,
		Backend:  gatedGenerator,
		Metrics:  reg,
		Log:      log,
	}

	router := httpapi.NewRouter(cfg, log, pl, reg, storeBreaker, backendBreaker)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("semantic cache listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("semantic cache stopped gracefully")
	}

	if err := cacheStore.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing store connection")
	}
}
