package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/predict"
)

func TestMemoryStore_RecentEvents_FiltersByTime(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	store.AddEvents(
		events.Event{ID: "old", BinID: "bin-1", Timestamp: now.Add(-48 * time.Hour)},
		events.Event{ID: "recent", BinID: "bin-1", Timestamp: now.Add(-1 * time.Hour)},
		events.Event{ID: "boundary", BinID: "bin-2", Timestamp: now.Add(-24 * time.Hour)},
	)

	got, err := store.RecentEvents(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("RecentEvents() unexpected error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentEvents() returned %d events, want 2", len(got))
	}
	for _, ev := range got {
		if ev.ID == "old" {
			t.Error("event before the window was returned")
		}
	}
}

func TestMemoryStore_BinEvents_FiltersAndSorts(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	store.AddEvents(
		events.Event{ID: "b", BinID: "bin-1", Timestamp: now.Add(-1 * time.Hour)},
		events.Event{ID: "other", BinID: "bin-2", Timestamp: now.Add(-1 * time.Hour)},
		events.Event{ID: "a", BinID: "bin-1", Timestamp: now.Add(-3 * time.Hour)},
	)

	got, err := store.BinEvents(context.Background(), "bin-1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("BinEvents() unexpected error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("BinEvents() returned %d events, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("BinEvents() order = [%s %s], want oldest first", got[0].ID, got[1].ID)
	}
}

func TestMemoryStore_ActiveBins(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	store.AddEvents(
		events.Event{ID: "e1", BinID: "bin-1", Timestamp: now.Add(-1 * time.Hour)},
		events.Event{ID: "e2", BinID: "bin-1", Timestamp: now.Add(-2 * time.Hour)},
		events.Event{ID: "e3", BinID: "bin-2", Timestamp: now.Add(-1 * time.Hour)},
		events.Event{ID: "e4", BinID: "bin-idle", Timestamp: now.Add(-72 * time.Hour)},
	)

	got, err := store.ActiveBins(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ActiveBins() unexpected error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ActiveBins() = %v, want two bins", got)
	}
}

func TestMemoryStore_Anomalies_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	saved := []anomaly.Anomaly{
		{BinID: "bin-1", Type: anomaly.TypeStatisticalOutlier, Severity: anomaly.SeverityMedium, Confidence: 0.6, DetectedAt: now},
		{BinID: "bin-1", Type: anomaly.TypeTemporalWeightSpike, Severity: anomaly.SeverityMedium, Confidence: 0.8, DetectedAt: now.Add(-2 * time.Hour)},
		{BinID: "bin-2", Type: anomaly.TypeStatisticalOutlier, Severity: anomaly.SeverityHigh, Confidence: 0.9, DetectedAt: now},
	}
	if err := store.SaveAnomalies(context.Background(), saved); err != nil {
		t.Fatalf("SaveAnomalies() unexpected error = %v", err)
	}
	if store.AnomalyCount() != 3 {
		t.Errorf("AnomalyCount() = %d, want 3", store.AnomalyCount())
	}

	got, err := store.RecentAnomalies(context.Background(), "bin-1", now.Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("RecentAnomalies() unexpected error = %v", err)
	}
	if len(got) != 1 || got[0].Type != anomaly.TypeStatisticalOutlier {
		t.Errorf("RecentAnomalies() = %+v, want only the recent bin-1 record", got)
	}
}

func TestMemoryPredictionCache_PutGet(t *testing.T) {
	cache := NewMemoryPredictionCache()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	p := predict.Prediction{BinID: "bin-1", GeneratedAt: now, DataPoints: 12}
	if err := cache.Put(context.Background(), p); err != nil {
		t.Fatalf("Put() unexpected error = %v", err)
	}

	got, found, err := cache.GetLatest(context.Background(), "bin-1")
	if err != nil {
		t.Fatalf("GetLatest() unexpected error = %v", err)
	}
	if !found {
		t.Fatal("GetLatest() found = false, want true")
	}
	if got.DataPoints != 12 {
		t.Errorf("DataPoints = %d, want 12", got.DataPoints)
	}
}

func TestMemoryPredictionCache_Put_EmptyBin(t *testing.T) {
	cache := NewMemoryPredictionCache()
	if err := cache.Put(context.Background(), predict.Prediction{}); err == nil {
		t.Fatal("expected error for empty bin id, got nil")
	}
}

func TestMemoryPredictionCache_GetLatest_NotFound(t *testing.T) {
	cache := NewMemoryPredictionCache()
	_, found, err := cache.GetLatest(context.Background(), "nonexistent")
	if err != nil {
		t.Errorf("GetLatest() unexpected error = %v", err)
	}
	if found {
		t.Error("GetLatest() found = true for nonexistent bin, want false")
	}
}

func TestMemoryPredictionCache_TTL_Expiration(t *testing.T) {
	cache := NewMemoryPredictionCacheWithTTL(50*time.Millisecond, 10*time.Millisecond)
	defer cache.Stop()

	p := predict.Prediction{BinID: "bin-1", GeneratedAt: time.Now()}
	if err := cache.Put(context.Background(), p); err != nil {
		t.Fatalf("Put() unexpected error = %v", err)
	}

	_, found, err := cache.GetLatest(context.Background(), "bin-1")
	if err != nil || !found {
		t.Fatalf("GetLatest() immediately after Put: found=%v err=%v", found, err)
	}

	time.Sleep(150 * time.Millisecond)

	_, found, err = cache.GetLatest(context.Background(), "bin-1")
	if err != nil {
		t.Fatalf("GetLatest() after expiry: %v", err)
	}
	if found {
		t.Error("expected prediction to be expired")
	}
}

func TestMemoryPredictionCache_Stop_Idempotent(t *testing.T) {
	cache := NewMemoryPredictionCacheWithTTL(time.Minute, 10*time.Millisecond)
	cache.Stop()
	cache.Stop()

	// A cache without TTL has no goroutine to stop.
	NewMemoryPredictionCache().Stop()
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			binID := fmt.Sprintf("bin-%d", id)
			store.AddEvents(events.Event{ID: binID + "-e", BinID: binID, Timestamp: now})
			if err := store.SaveAnomalies(context.Background(), []anomaly.Anomaly{
				{BinID: binID, Type: anomaly.TypeStatisticalOutlier, Severity: anomaly.SeverityLow, DetectedAt: now},
			}); err != nil {
				t.Errorf("SaveAnomalies failed for %s: %v", binID, err)
			}
			if _, err := store.RecentEvents(context.Background(), now.Add(-time.Hour)); err != nil {
				t.Errorf("RecentEvents failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if store.AnomalyCount() != 10 {
		t.Errorf("AnomalyCount() = %d, want 10", store.AnomalyCount())
	}
	bins, err := store.ActiveBins(context.Background(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ActiveBins() unexpected error = %v", err)
	}
	if len(bins) != 10 {
		t.Errorf("ActiveBins() = %d bins, want 10", len(bins))
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.RecentEvents(ctx, time.Now()); err == nil {
		t.Error("RecentEvents() with canceled context should error")
	}
	if err := store.SaveAnomalies(ctx, nil); err == nil {
		t.Error("SaveAnomalies() with canceled context should error")
	}
}
