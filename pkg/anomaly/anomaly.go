// Package anomaly implements the multi-algorithm anomaly detection engine.
//
// Five independent detectors run over each bin's event window:
//   - statistical: z-score / IQR outliers on weight, fill level and purity
//   - pattern: usage histograms, material composition, weight distribution
//   - contextual: location class, night usage, per-user frequency
//   - temporal: weight spikes, event intervals, seasonal hour patterns
//   - delegated: optional external scorer signals
//
// Candidates from all detectors are consolidated into one representative
// per (type, severity) pair before they leave the engine, so downstream
// consumers never see duplicate near-identical alerts.
package anomaly

import (
	"sort"
	"time"
)

// Severity grades how serious an anomaly is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for sorting: high=3, medium=2, low=1.
// Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Valid reports whether s is one of the three defined severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity maps a free-form severity string onto the taxonomy,
// defaulting to low for anything unrecognized. Delegated backends are not
// trusted to emit only the three literals.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Anomaly type taxonomy produced by the built-in detectors.
const (
	TypeStatisticalOutlier      = "statistical_outlier"
	TypeUnusualUsagePattern     = "unusual_usage_pattern"
	TypeUnusualMaterialMix      = "unusual_material_composition"
	TypeUnusuallyHeavyDeposits  = "unusually_heavy_deposits"
	TypeUnusuallyLightDeposits  = "unusually_light_deposits"
	TypeHighUsageResidential    = "high_usage_residential_area"
	TypeUnusualNightUsage       = "unusual_night_usage"
	TypeHighFrequencyUser       = "high_frequency_user"
	TypeTemporalWeightSpike     = "temporal_weight_spike"
	TypeUnusuallyFrequentEvents = "unusually_frequent_events"
	TypeSeasonalUsagePattern    = "seasonal_usage_pattern"
)

// Anomaly is one flagged deviation from expected bin behavior. Anomalies
// are ephemeral computation results; the engine produces and deduplicates
// them but does not own their persistence.
type Anomaly struct {
	BinID      string         `json:"binId"`
	EventID    string         `json:"eventId,omitempty"`
	Type       string         `json:"type"`
	Severity   Severity       `json:"severity"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`

	// Source names the detector that produced the anomaly, e.g.
	// "statistical" or "delegated".
	Source string `json:"source,omitempty"`

	DetectedAt time.Time `json:"detectedAt,omitempty"`
}

// ClampConfidence bounds c to [0,1]. Every confidence leaving the engine
// passes through here.
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Consolidate merges candidate anomalies that share (type, severity) into a
// single representative: the first encountered, with its confidence raised
// to the maximum seen in the group and its details merged (later values win
// on key collision). The result is sorted by severity rank descending;
// within a rank, encounter order is preserved.
//
// Consolidate is idempotent: applying it to its own output is a no-op.
func Consolidate(candidates []Anomaly) []Anomaly {
	type key struct {
		typ      string
		severity Severity
	}

	merged := make(map[key]*Anomaly)
	order := make([]key, 0, len(candidates))

	for _, c := range candidates {
		k := key{c.Type, c.Severity}
		rep, ok := merged[k]
		if !ok {
			clone := c
			clone.Confidence = ClampConfidence(c.Confidence)
			if len(c.Details) > 0 {
				clone.Details = make(map[string]any, len(c.Details))
				for dk, dv := range c.Details {
					clone.Details[dk] = dv
				}
			}
			merged[k] = &clone
			order = append(order, k)
			continue
		}

		if conf := ClampConfidence(c.Confidence); conf > rep.Confidence {
			rep.Confidence = conf
		}
		if len(c.Details) > 0 {
			if rep.Details == nil {
				rep.Details = make(map[string]any, len(c.Details))
			}
			for dk, dv := range c.Details {
				rep.Details[dk] = dv
			}
		}
	}

	out := make([]Anomaly, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}
