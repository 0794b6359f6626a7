// Package storage provides the persistence backends: Postgres for events
// and anomalies, Redis or memory for the prediction cache.
package storage

import (
	"context"
	"time"

	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/predict"
)

// EventStore reads bin event history. Implementations satisfy both the
// detection engine's window reads and the prediction engine's per-bin reads.
type EventStore interface {
	// RecentEvents returns all events across bins since the given time,
	// joined with the owning bin's fields.
	RecentEvents(ctx context.Context, since time.Time) ([]events.Event, error)

	// BinEvents returns one bin's events since the given time, oldest first.
	BinEvents(ctx context.Context, binID string, since time.Time) ([]events.Event, error)

	// ActiveBins lists bins with at least one event since the given time.
	ActiveBins(ctx context.Context, since time.Time) ([]string, error)
}

// AnomalyStore persists detected anomalies and serves the duplicate
// suppression reads.
type AnomalyStore interface {
	SaveAnomalies(ctx context.Context, anomalies []anomaly.Anomaly) error
	RecentAnomalies(ctx context.Context, binID string, since time.Time) ([]anomaly.Anomaly, error)
}

// PredictionCache holds the latest prediction per bin. Entries expire so a
// stale forecast is dropped rather than served indefinitely.
type PredictionCache interface {
	Put(ctx context.Context, p predict.Prediction) error

	// GetLatest returns the cached prediction for a bin. found is false
	// when no entry exists or it has expired.
	GetLatest(ctx context.Context, binID string) (predict.Prediction, bool, error)
}
