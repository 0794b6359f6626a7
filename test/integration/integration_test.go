//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/cleanloop/binsight/cmd/analyzer/router"
	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/insight"
	"github.com/cleanloop/binsight/pkg/predict"
	"github.com/cleanloop/binsight/pkg/storage"
)

func startRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		endpoint = endpoint[8:]
	}
	return endpoint
}

// TestAnalysisPipelineE2E runs the full pipeline against a real Redis
// prediction cache: seed events, detect anomalies, compute and cache
// predictions, then read both back through the HTTP API.
func TestAnalysisPipelineE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	addr := startRedis(t)

	cache, err := storage.NewRedisPredictionCache(addr, "", 0, 10*time.Minute)
	if err != nil {
		t.Fatalf("failed to create prediction cache: %v", err)
	}
	defer cache.Close()

	store := storage.NewMemoryStore()
	now := time.Now()

	// One bin with a pronounced weight spike plus steady baseline traffic.
	weights := []float64{12, 11, 13, 95, 12, 11, 12, 13}
	for i, w := range weights {
		store.AddEvents(events.Event{
			ID:        "evt-" + string(rune('a'+i)),
			BinID:     "bin-east-4",
			Timestamp: now.Add(-time.Duration(len(weights)-i) * time.Hour),
			WeightKg:  w,
		})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &insight.NoopClient{}

	detector := anomaly.NewEngine(anomaly.DefaultConfig(), store, store, client, logger)
	predictor := predict.NewEngine(predict.DefaultConfig(), store, client, logger)

	ctx := context.Background()

	res, err := detector.DetectAndStore(ctx, now)
	if err != nil {
		t.Fatalf("DetectAndStore: %v", err)
	}
	if res.Stored == 0 {
		t.Fatal("expected anomalies from the spike window")
	}

	p := predictor.Predict(ctx, "bin-east-4", now)
	if p.Defaulted {
		t.Fatal("prediction defaulted despite seeded history")
	}
	if err := cache.Put(ctx, p); err != nil {
		t.Fatalf("cache Put: %v", err)
	}

	// Read everything back through the HTTP API.
	mux := router.SetupRoutes(cache, store, time.Hour, nil, logger)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/predictions/current?bin=bin-east-4")
	if err != nil {
		t.Fatalf("GET prediction: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prediction status = %d, want 200", resp.StatusCode)
	}

	var got predict.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode prediction: %v", err)
	}
	if got.BinID != "bin-east-4" || got.DataPoints != len(weights) {
		t.Errorf("prediction = bin %q with %d points, want bin-east-4 with %d",
			got.BinID, got.DataPoints, len(weights))
	}
	if got.Capacity[predict.HorizonShort].PredictedKg <= 0 {
		t.Error("short-horizon capacity forecast missing after Redis round trip")
	}

	anomResp, err := http.Get(server.URL + "/anomalies/recent?bin=bin-east-4&window=2h")
	if err != nil {
		t.Fatalf("GET anomalies: %v", err)
	}
	defer anomResp.Body.Close()
	if anomResp.StatusCode != http.StatusOK {
		t.Fatalf("anomalies status = %d, want 200", anomResp.StatusCode)
	}

	var anomalies struct {
		Count     int               `json:"count"`
		Anomalies []anomaly.Anomaly `json:"anomalies"`
	}
	if err := json.NewDecoder(anomResp.Body).Decode(&anomalies); err != nil {
		t.Fatalf("decode anomalies: %v", err)
	}
	if anomalies.Count == 0 {
		t.Fatal("no anomalies returned through the API")
	}
	for _, a := range anomalies.Anomalies {
		if a.BinID != "bin-east-4" {
			t.Errorf("anomaly for wrong bin: %+v", a)
		}
		if !a.Severity.Valid() {
			t.Errorf("invalid severity in API response: %+v", a)
		}
	}
}

// TestPredictionCacheExpiryE2E verifies that predictions age out of Redis
// and the API reports them gone rather than serving stale data forever.
func TestPredictionCacheExpiryE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	addr := startRedis(t)

	cache, err := storage.NewRedisPredictionCache(addr, "", 0, 2*time.Second)
	if err != nil {
		t.Fatalf("failed to create prediction cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	p := predict.Prediction{BinID: "bin-1", GeneratedAt: time.Now()}
	if err := cache.Put(ctx, p); err != nil {
		t.Fatalf("cache Put: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := router.SetupRoutes(cache, storage.NewMemoryStore(), time.Hour, nil, logger)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/predictions/current?bin=bin-1")
	if err != nil {
		t.Fatalf("GET prediction: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d before expiry, want 200", resp.StatusCode)
	}

	time.Sleep(3 * time.Second)

	resp, err = http.Get(server.URL + "/predictions/current?bin=bin-1")
	if err != nil {
		t.Fatalf("GET prediction after expiry: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d after expiry, want 404", resp.StatusCode)
	}
}
