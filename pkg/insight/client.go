// Package insight provides the delegated-scorer client used as an optional
// extra signal by the anomaly detection and predictive analytics engines.
//
// The scorer is an external text-generation service treated as a black box:
// it receives a bin's event window and may return per-event insight objects
// (some marked anomalous) or a short narrative for prediction enrichment.
// The service may be unconfigured, unreachable, or slow; every caller treats
// a failed or empty response as "no additional signal", never as an error
// that aborts the analysis pipeline.
//
// Two backends are provided:
//   - HTTPClient: a generic JSON-over-HTTP backend with gjson path
//     extraction, usable against any provider speaking the simple contract
//   - NoopClient: the "not configured" backend, returning empty results
//
// The backend is chosen once by explicit configuration (see New); detection
// and prediction code never switches providers at runtime.
package insight

import (
	"context"
	"fmt"

	"github.com/cleanloop/binsight/pkg/events"
)

// Insight is one per-event scoring result from the delegated backend.
type Insight struct {
	EventID string `json:"eventId"`

	// Anomalous marks the event as a candidate anomaly.
	Anomalous bool `json:"anomalous"`

	// Type is the backend's anomaly classification, free-form.
	Type string `json:"type,omitempty"`

	// Severity is "low", "medium" or "high". Unknown values are treated
	// as "low" by the consumer.
	Severity string `json:"severity,omitempty"`

	// Confidence is the backend's score in [0,1].
	Confidence float64 `json:"confidence"`

	// Summary is a short free-text explanation.
	Summary string `json:"summary,omitempty"`
}

// Narrative is the prediction enrichment returned by the backend.
type Narrative struct {
	PeakTimes    string `json:"peakTimes"`
	Optimization string `json:"optimization"`
	Risk         string `json:"risk"`
}

// FallbackNarrative is returned by callers when the backend is unavailable.
// Fixed generic text keeps the prediction object structurally complete.
func FallbackNarrative() Narrative {
	return Narrative{
		PeakTimes:    "Peak usage typically occurs in the morning and early evening.",
		Optimization: "Review collection frequency against the recommended cadence.",
		Risk:         "No elevated risk signals; continue routine monitoring.",
	}
}

// Client is the delegated-scorer interface.
//
// Both calls are synchronous, respect context cancellation and deadlines,
// and must never panic. Implementations representing an unconfigured
// backend return empty results with a nil error.
type Client interface {
	// Analyze scores a bin's event window and returns per-event insights,
	// some of which may be marked anomalous.
	Analyze(ctx context.Context, batch []events.Event) ([]Insight, error)

	// Predict returns narrative peak-time/optimization/risk text for a bin.
	// context carries the numeric forecast summary the narrative should
	// reference.
	Predict(ctx context.Context, binID string, summary map[string]any) (Narrative, error)

	// Name returns a short backend identifier, e.g. "http" or "none".
	Name() string
}

// Config selects and configures the delegated-scorer backend.
type Config struct {
	// Backend is "http" or "none". Empty means "none".
	Backend string

	// HTTP holds the HTTP backend settings; ignored for other backends.
	HTTP HTTPConfig
}

// New constructs the configured backend. An empty or "none" backend yields
// a NoopClient. The preferred backend is an explicit configuration value,
// not process-wide state.
func New(cfg Config) (Client, error) {
	switch cfg.Backend {
	case "", "none":
		return &NoopClient{}, nil
	case "http":
		return NewHTTPClient(cfg.HTTP)
	default:
		return nil, fmt.Errorf("unknown insight backend %q (must be http or none)", cfg.Backend)
	}
}
