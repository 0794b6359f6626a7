// Package router configures HTTP routes for the analyzer's HTTP API.
//
// Routes configured:
//   - GET /predictions/current?bin=<id> - Retrieve the latest cached prediction
//   - GET /anomalies/recent?bin=<id>[&window=24h] - Recent anomalies for a bin
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Predictions older than the stale threshold include an X-Binsight-Stale
// header so callers can decide whether to trust them.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cleanloop/binsight/pkg/httpx"
	"github.com/cleanloop/binsight/pkg/storage"
)

var binIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SetupRoutes configures HTTP endpoints for the analyzer. healthCheck may
// be nil when no backend connectivity check is wanted.
func SetupRoutes(cache storage.PredictionCache, anomalies storage.AnomalyStore, staleAfter time.Duration, healthCheck func() error, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandlerWithCheck(healthCheck))
	mux.HandleFunc("/predictions/current", handleGetPrediction(cache, staleAfter, logger))
	mux.HandleFunc("/anomalies/recent", handleGetAnomalies(anomalies, logger))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetPrediction returns a handler for GET /predictions/current?bin=<id>.
func handleGetPrediction(cache storage.PredictionCache, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID, ok := binParam(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		p, found, err := cache.GetLatest(ctx, binID)
		if err != nil {
			logger.Error("failed to get prediction", "bin", binID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no prediction for bin %q", binID))
			return
		}

		if time.Since(p.GeneratedAt) > staleAfter {
			w.Header().Set("X-Binsight-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, p); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleGetAnomalies returns a handler for GET /anomalies/recent?bin=<id>.
// The optional window parameter (a Go duration, default 24h) bounds how far
// back to look.
func handleGetAnomalies(store storage.AnomalyStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		binID, ok := binParam(w, r)
		if !ok {
			return
		}

		window := 24 * time.Hour
		if raw := r.URL.Query().Get("window"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid window duration")
				return
			}
			window = d
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		anomalies, err := store.RecentAnomalies(ctx, binID, time.Now().Add(-window))
		if err != nil {
			logger.Error("failed to get anomalies", "bin", binID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		resp := map[string]any{
			"binId":     binID,
			"window":    window.String(),
			"anomalies": anomalies,
			"count":     len(anomalies),
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func binParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	binID := r.URL.Query().Get("bin")
	if binID == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "bin parameter required")
		return "", false
	}
	if !binIDRegex.MatchString(binID) {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid bin id format")
		return "", false
	}
	return binID, true
}
