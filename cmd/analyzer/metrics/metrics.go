// Package metrics provides Prometheus metrics instrumentation for the
// analyzer.
//
// It exposes operational metrics about the analysis pipeline, including the
// duration of each stage (detection, prediction), anomaly production by type
// and severity, and error tracking. All metrics are exposed via the /metrics
// HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - binsight_detect_seconds: Histogram of anomaly detection pass duration
//   - binsight_predict_seconds: Histogram of per-bin prediction duration
//   - binsight_bins_analyzed: Gauge of bins covered by the last pass
//   - binsight_anomalies_total: Counter of stored anomalies by type and severity
//   - binsight_prediction_age_seconds: Gauge of the age of the newest prediction
//   - binsight_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the analyzer.
type Metrics struct {
	DetectSeconds        prometheus.Histogram
	PredictSeconds       prometheus.Histogram
	BinsAnalyzed         prometheus.Gauge
	AnomaliesTotal       *prometheus.CounterVec
	PredictionAgeSeconds prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DetectSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "binsight_detect_seconds",
			Help:    "Time spent running a full anomaly detection pass",
			Buckets: prometheus.DefBuckets,
		}),

		PredictSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "binsight_predict_seconds",
			Help:    "Time spent computing one bin's prediction",
			Buckets: prometheus.DefBuckets,
		}),

		BinsAnalyzed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "binsight_bins_analyzed",
			Help: "Number of bins covered by the last analysis pass",
		}),

		AnomaliesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "binsight_anomalies_total",
			Help: "Total anomalies stored, by type and severity",
		}, []string{"type", "severity"}),

		PredictionAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "binsight_prediction_age_seconds",
			Help: "Age of the most recently generated prediction in seconds",
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "binsight_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordDetect records the duration of a detection pass.
func (m *Metrics) RecordDetect(seconds float64) {
	m.DetectSeconds.Observe(seconds)
}

// RecordPredict records the duration of one bin's prediction.
func (m *Metrics) RecordPredict(seconds float64) {
	m.PredictSeconds.Observe(seconds)
}

// SetBinsAnalyzed sets the bin coverage of the last pass.
func (m *Metrics) SetBinsAnalyzed(bins int) {
	m.BinsAnalyzed.Set(float64(bins))
}

// RecordAnomaly increments the anomaly counter.
func (m *Metrics) RecordAnomaly(anomalyType, severity string) {
	m.AnomaliesTotal.WithLabelValues(anomalyType, severity).Inc()
}

// SetPredictionAge sets the age of the newest prediction.
func (m *Metrics) SetPredictionAge(seconds float64) {
	m.PredictionAgeSeconds.Set(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
