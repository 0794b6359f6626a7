// Command analyzer implements the binsight analytical engine.
//
// The analyzer runs a continuous analysis loop that:
//  1. Reads recent bin sensor events from the event store
//  2. Detects anomalies per bin (statistical, pattern, contextual,
//     temporal, and delegated detectors) and persists them
//  3. Computes capacity, usage, collection, revenue and maintenance
//     forecasts for every active bin
//  4. Caches the latest prediction per bin for API consumers
//
// The analyzer serves an HTTP API on port 8082 (configurable) providing:
//   - GET /predictions/current?bin=<id> - Retrieve latest cached prediction
//   - GET /anomalies/recent?bin=<id> - Recent anomalies for a bin
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	analyzer \
//	  -store=postgres \
//	  -postgres-dsn='postgres://binsight:secret@db:5432/binsight?sslmode=disable' \
//	  -cache=redis \
//	  -redis-addr=redis:6379 \
//	  -insight-backend=http \
//	  -insight-url=http://scorer:8090/v1/insights
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :8082)
//	STORE           - Event store backend: postgres or memory
//	POSTGRES_DSN    - Postgres connection string
//	CACHE           - Prediction cache backend: memory or redis
//	REDIS_ADDR      - Redis server address
//	REDIS_TTL       - Cached prediction TTL (default: 30m)
//	INSIGHT_BACKEND - Delegated scorer backend: http or none
//	INSIGHT_URL     - Delegated scorer URL
//	DETECT_WINDOW   - Detection event window (default: 168h)
//	INTERVAL        - Analysis loop interval (default: 15m)
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleanloop/binsight/cmd/analyzer/config"
	"github.com/cleanloop/binsight/cmd/analyzer/logger"
	"github.com/cleanloop/binsight/cmd/analyzer/metrics"
	"github.com/cleanloop/binsight/cmd/analyzer/router"
	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/httpx"
	"github.com/cleanloop/binsight/pkg/insight"
	"github.com/cleanloop/binsight/pkg/predict"
	"github.com/cleanloop/binsight/pkg/storage"
	binsighttls "github.com/cleanloop/binsight/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting binsight analyzer",
		"version", version,
		"store", cfg.Store,
		"cache", cfg.Cache,
		"insight_backend", cfg.InsightBackend,
	)

	store, err := newStore(cfg)
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()
	}

	cache, err := newCache(cfg)
	if err != nil {
		logger.Error("failed to create prediction cache", "error", err)
		os.Exit(1)
	}
	if closer, ok := cache.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close cache", "error", err)
			}
		}()
	}

	insightClient, err := insight.New(insight.Config{
		Backend: cfg.InsightBackend,
		HTTP: insight.HTTPConfig{
			URL:     cfg.InsightURL,
			Model:   cfg.InsightModel,
			Timeout: cfg.InsightTimeout,
			TLS:     cfg.TLS,
		},
	})
	if err != nil {
		logger.Error("failed to create insight client", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	detectCfg := anomaly.DefaultConfig()
	detectCfg.Window = cfg.DetectWindow
	detectCfg.InsightTimeout = cfg.InsightTimeout

	predictCfg := predict.DefaultConfig()
	predictCfg.InsightTimeout = cfg.InsightTimeout

	anomalyStore := &recordingAnomalyStore{AnomalyStore: store, metrics: m}
	detector := anomaly.NewEngine(detectCfg, store, anomalyStore, insightClient, logger)
	predictor := predict.NewEngine(predictCfg, store, insightClient, logger)

	a := New(detector, predictor, store, cache, predictCfg.HistoryWindow, logger, m)

	staleAfter := 2 * cfg.Interval // A prediction is stale if older than 2x the interval
	mux := router.SetupRoutes(cache, store, staleAfter, healthCheck(store, cache), logger)
	httpServer := httpx.NewServer(cfg.Listen, mux, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.Run(ctx, cfg.Interval); err != nil && err != context.Canceled {
			logger.Error("analysis loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- startServer(httpServer, cfg)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// storeBackend is the combined persistence interface both backends satisfy.
type storeBackend interface {
	storage.EventStore
	storage.AnomalyStore
}

func newStore(cfg *config.Config) (storeBackend, error) {
	switch cfg.Store {
	case "postgres":
		return storage.NewPostgresStore(cfg.PostgresDSN)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}

func newCache(cfg *config.Config) (storage.PredictionCache, error) {
	switch cfg.Cache {
	case "redis":
		return storage.NewRedisPredictionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
	case "memory":
		return storage.NewMemoryPredictionCacheWithTTL(cfg.RedisTTL, time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache)
	}
}

// healthCheck pings every backend that supports it.
func healthCheck(backends ...any) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		for _, b := range backends {
			if pinger, ok := b.(interface{ Ping(context.Context) error }); ok {
				if err := pinger.Ping(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func startServer(s *httpx.Server, cfg *config.Config) error {
	if !cfg.TLS.Enabled {
		return s.Start()
	}

	tlsConfig, err := binsighttls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
	if err != nil {
		return fmt.Errorf("create server TLS config: %w", err)
	}
	s.SetTLSConfig(tlsConfig)
	return s.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
}
