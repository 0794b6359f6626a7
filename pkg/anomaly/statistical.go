package anomaly

import (
	"math"

	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/stats"
)

// detectStatistical runs z-score / IQR outlier detection independently over
// the weight, fill-level and purity series of the window. Non-positive and
// absent readings are filtered out before statistics are computed, so a
// malformed event degrades one series rather than poisoning the detector.
func (e *Engine) detectStatistical(group []events.Event) []Anomaly {
	if len(group) < e.cfg.MinStatisticalEvents {
		return nil
	}

	var out []Anomaly
	out = append(out, e.seriesOutliers(group, "weight_kg", func(ev events.Event) float64 { return ev.WeightKg })...)
	out = append(out, e.seriesOutliers(group, "fill_level_pct", func(ev events.Event) float64 { return ev.FillLevelPct })...)
	out = append(out, e.seriesOutliers(group, "purity_score", func(ev events.Event) float64 { return ev.PurityScore })...)
	return out
}

func (e *Engine) seriesOutliers(group []events.Event, label string, value func(events.Event) float64) []Anomaly {
	values := make([]float64, 0, len(group))
	ids := make([]string, 0, len(group))
	for _, ev := range group {
		v := value(ev)
		if v <= 0 || math.IsNaN(v) {
			continue
		}
		values = append(values, v)
		ids = append(ids, ev.ID)
	}

	if len(values) < e.cfg.MinStatisticalEvents {
		return nil
	}

	summary, err := stats.Describe(values)
	if err != nil {
		return nil
	}

	outliers := stats.Outliers(values, summary, e.cfg.Outliers)
	anomalies := make([]Anomaly, 0, len(outliers))
	for _, o := range outliers {
		severity := SeverityMedium
		if o.Z > 3 {
			severity = SeverityHigh
		}
		anomalies = append(anomalies, Anomaly{
			EventID:    ids[o.Index],
			Type:       TypeStatisticalOutlier,
			Severity:   severity,
			Confidence: ClampConfidence(math.Min(0.95, o.Z/4)),
			Source:     "statistical",
			Details: map[string]any{
				"metric": label,
				"value":  o.Value,
				"zScore": o.Z,
				"method": o.Method,
				"mean":   summary.Mean,
				"stdDev": summary.StdDev,
			},
		})
	}
	return anomalies
}
