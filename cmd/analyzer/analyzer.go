// Package main implements the core analysis loop orchestration.
//
// This file contains the Analyzer type which orchestrates the pipeline:
//
//	detect anomalies → store → predict per active bin → cache predictions
//
// The Analyzer runs continuously via Run(), executing Tick() at regular
// intervals. Each tick performs one complete analysis cycle: a detection
// batch over the recent event window, then a fresh prediction for every bin
// that was active inside the prediction history window.
//
// The loop is instrumented with Prometheus metrics tracking the duration of
// each stage and any errors encountered during execution.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cleanloop/binsight/cmd/analyzer/metrics"
	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/predict"
	"github.com/cleanloop/binsight/pkg/storage"
)

// Analyzer orchestrates the analysis loop: detect → store → predict → cache.
type Analyzer struct {
	detector  *anomaly.Engine
	predictor *predict.Engine
	events    storage.EventStore
	cache     storage.PredictionCache

	// predictWindow decides which bins get a fresh prediction: any bin
	// with at least one event inside it.
	predictWindow time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a new Analyzer.
func New(
	detector *anomaly.Engine,
	predictor *predict.Engine,
	events storage.EventStore,
	cache storage.PredictionCache,
	predictWindow time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		detector:      detector,
		predictor:     predictor,
		events:        events,
		cache:         cache,
		predictWindow: predictWindow,
		logger:        logger,
		metrics:       m,
	}
}

// Run executes the analysis loop at regular intervals.
// Blocks until context is canceled.
func (a *Analyzer) Run(ctx context.Context, interval time.Duration) error {
	a.logger.Info("starting analysis loop", "interval", interval, "predict_window", a.predictWindow)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := a.Tick(ctx); err != nil {
		a.logger.Error("initial analysis tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("analysis loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Tick(ctx); err != nil {
				a.logger.Error("analysis tick failed", "error", err)
			}
		}
	}
}

// Tick performs one analysis cycle.
// Exported for testing purposes.
func (a *Analyzer) Tick(ctx context.Context) error {
	start := time.Now()
	a.logger.Debug("starting analysis tick")

	res, detectDuration, err := a.detect(ctx, start)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordError("detector", "batch_failed")
		}
		return fmt.Errorf("detect: %w", err)
	}

	predicted, failures, predictDuration := a.predictAll(ctx, start)

	if a.metrics != nil {
		a.metrics.SetBinsAnalyzed(res.Bins)
		if predicted > 0 {
			a.metrics.SetPredictionAge(0)
		}
	}

	totalDuration := time.Since(start)
	a.logger.Info("analysis tick complete",
		"bins", res.Bins,
		"anomalies_stored", res.Stored,
		"anomalies_suppressed", res.Suppressed,
		"predictions", predicted,
		"prediction_failures", failures,
		"detect_ms", detectDuration.Milliseconds(),
		"predict_ms", predictDuration.Milliseconds(),
		"total_ms", totalDuration.Milliseconds(),
	)

	return nil
}

// detect runs one anomaly detection batch.
func (a *Analyzer) detect(ctx context.Context, now time.Time) (anomaly.BatchResult, time.Duration, error) {
	start := time.Now()

	res, err := a.detector.DetectAndStore(ctx, now)
	if err != nil {
		return res, 0, err
	}

	duration := time.Since(start)
	if a.metrics != nil {
		a.metrics.RecordDetect(duration.Seconds())
	}
	return res, duration, nil
}

// predictAll refreshes the cached prediction for every active bin. A
// failure for one bin is logged and counted; it never aborts the others.
func (a *Analyzer) predictAll(ctx context.Context, now time.Time) (predicted, failures int, duration time.Duration) {
	start := time.Now()

	bins, err := a.events.ActiveBins(ctx, now.Add(-a.predictWindow))
	if err != nil {
		a.logger.Error("failed to list active bins", "error", err)
		if a.metrics != nil {
			a.metrics.RecordError("events", "active_bins_failed")
		}
		return 0, 0, time.Since(start)
	}

	for _, binID := range bins {
		binStart := time.Now()
		p := a.predictor.Predict(ctx, binID, now)
		if a.metrics != nil {
			a.metrics.RecordPredict(time.Since(binStart).Seconds())
		}

		if err := a.cache.Put(ctx, p); err != nil {
			failures++
			a.logger.Error("failed to cache prediction", "bin", binID, "error", err)
			if a.metrics != nil {
				a.metrics.RecordError("cache", "put_failed")
			}
			continue
		}
		predicted++
	}

	return predicted, failures, time.Since(start)
}

// recordingAnomalyStore wraps an AnomalyStore and counts every stored
// anomaly by type and severity.
type recordingAnomalyStore struct {
	storage.AnomalyStore
	metrics *metrics.Metrics
}

func (r *recordingAnomalyStore) SaveAnomalies(ctx context.Context, anomalies []anomaly.Anomaly) error {
	if err := r.AnomalyStore.SaveAnomalies(ctx, anomalies); err != nil {
		return err
	}
	if r.metrics != nil {
		for _, a := range anomalies {
			r.metrics.RecordAnomaly(a.Type, string(a.Severity))
		}
	}
	return nil
}
