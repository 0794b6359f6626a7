package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/predict"
)

// MemoryStore implements EventStore and AnomalyStore in memory.
// It is safe for concurrent use by multiple goroutines.
//
// MemoryStore is intended for development and tests. Production deployments
// use PostgresStore so events and anomalies survive restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []events.Event
	anomalies []anomaly.Anomaly
}

// NewMemoryStore creates an empty in-memory event and anomaly store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddEvents appends events to the store. Primarily useful for seeding tests.
func (s *MemoryStore) AddEvents(evts ...events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evts...)
}

func (s *MemoryStore) RecentEvents(ctx context.Context, since time.Time) ([]events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, ev := range s.events {
		if !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) BinEvents(ctx context.Context, binID string, since time.Time) ([]events.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, ev := range s.events {
		if ev.BinID == binID && !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return events.SortByTime(out), nil
}

func (s *MemoryStore) ActiveBins(ctx context.Context, since time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var bins []string
	for _, ev := range s.events {
		if !ev.Timestamp.Before(since) && !seen[ev.BinID] {
			seen[ev.BinID] = true
			bins = append(bins, ev.BinID)
		}
	}
	return bins, nil
}

func (s *MemoryStore) SaveAnomalies(ctx context.Context, anomalies []anomaly.Anomaly) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, anomalies...)
	return nil
}

func (s *MemoryStore) RecentAnomalies(ctx context.Context, binID string, since time.Time) ([]anomaly.Anomaly, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []anomaly.Anomaly
	for _, a := range s.anomalies {
		if a.BinID == binID && !a.DetectedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AnomalyCount returns the number of stored anomalies. Useful for tests
// and metrics.
func (s *MemoryStore) AnomalyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.anomalies)
}

// MemoryPredictionCache implements PredictionCache with a map and optional
// TTL-based cleanup. If a TTL is configured, a background goroutine removes
// stale predictions; call Stop to shut it down.
type MemoryPredictionCache struct {
	mu            sync.RWMutex
	predictions   map[string]predict.Prediction
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryPredictionCache creates a cache with no expiration.
func NewMemoryPredictionCache() *MemoryPredictionCache {
	return &MemoryPredictionCache{
		predictions: make(map[string]predict.Prediction),
	}
}

// NewMemoryPredictionCacheWithTTL creates a cache whose entries expire after
// ttl. A background goroutine removes stale entries every cleanupInterval
// (defaulting to one minute). Stop must be called to release it.
func NewMemoryPredictionCacheWithTTL(ttl, cleanupInterval time.Duration) *MemoryPredictionCache {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	c := &MemoryPredictionCache{
		predictions:   make(map[string]predict.Prediction),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}
	go c.runCleanup()
	return c
}

// Stop shuts down the background cleanup goroutine. Safe to call multiple
// times or on a cache without TTL.
func (c *MemoryPredictionCache) Stop() {
	if c.cleanupTicker == nil {
		return
	}

	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.stopped {
		return
	}

	close(c.stopCleanup)
	<-c.cleanupDone
	c.cleanupTicker.Stop()
	c.stopped = true
}

func (c *MemoryPredictionCache) runCleanup() {
	defer close(c.cleanupDone)
	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryPredictionCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for bin, p := range c.predictions {
		if now.Sub(p.GeneratedAt) > c.ttl {
			delete(c.predictions, bin)
		}
	}
}

func (c *MemoryPredictionCache) Put(ctx context.Context, p predict.Prediction) error {
	if p.BinID == "" {
		return fmt.Errorf("prediction bin id cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.predictions[p.BinID] = p
	return nil
}

func (c *MemoryPredictionCache) GetLatest(ctx context.Context, binID string) (predict.Prediction, bool, error) {
	if err := ctx.Err(); err != nil {
		return predict.Prediction{}, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, found := c.predictions[binID]
	if found && c.ttl > 0 && time.Since(p.GeneratedAt) > c.ttl {
		return predict.Prediction{}, false, nil
	}
	return p, found, nil
}

// Len returns the number of cached predictions.
func (c *MemoryPredictionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.predictions)
}
