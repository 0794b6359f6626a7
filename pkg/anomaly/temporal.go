package anomaly

import (
	"github.com/cleanloop/binsight/pkg/events"
)

// detectTemporal examines the time-ordered window for weight spikes,
// implausibly short event intervals and dominant seasonal hours. It needs
// at least MinTemporalEvents events to say anything meaningful.
func (e *Engine) detectTemporal(group []events.Event) []Anomaly {
	if len(group) < e.cfg.MinTemporalEvents {
		return nil
	}
	ordered := events.SortByTime(group)

	var out []Anomaly

	// Spikes: each interior event against the average of its immediate
	// neighbors.
	for i := 1; i < len(ordered)-1; i++ {
		neighborAvg := (ordered[i-1].WeightKg + ordered[i+1].WeightKg) / 2
		if neighborAvg <= 0 {
			continue
		}
		if ordered[i].WeightKg > e.cfg.SpikeFactor*neighborAvg {
			out = append(out, Anomaly{
				EventID:    ordered[i].ID,
				Type:       TypeTemporalWeightSpike,
				Severity:   SeverityMedium,
				Confidence: 0.8,
				Source:     "temporal",
				Details: map[string]any{
					"weightKg":    ordered[i].WeightKg,
					"neighborAvg": neighborAvg,
					"ratio":       ordered[i].WeightKg / neighborAvg,
				},
			})
		}
	}

	// Intervals: consecutive events closer together than the minimum.
	for i := 1; i < len(ordered); i++ {
		gap := ordered[i].Timestamp.Sub(ordered[i-1].Timestamp)
		if gap < e.cfg.MinEventInterval {
			out = append(out, Anomaly{
				EventID:    ordered[i].ID,
				Type:       TypeUnusuallyFrequentEvents,
				Severity:   SeverityMedium,
				Confidence: 0.7,
				Source:     "temporal",
				Details: map[string]any{
					"gapSeconds": gap.Seconds(),
					"minSeconds": e.cfg.MinEventInterval.Seconds(),
				},
			})
		}
	}

	// Seasonal: hours whose event count dominates the hourly mean.
	var hourly [24]int
	for _, ev := range ordered {
		hourly[ev.Timestamp.Hour()]++
	}
	mean := float64(len(ordered)) / 24
	for hour, count := range hourly {
		if float64(count) > e.cfg.SeasonalFactor*mean {
			out = append(out, Anomaly{
				Type:       TypeSeasonalUsagePattern,
				Severity:   SeverityLow,
				Confidence: 0.6,
				Source:     "temporal",
				Details: map[string]any{
					"hour":       hour,
					"eventCount": count,
					"hourlyMean": mean,
				},
			})
		}
	}

	return out
}
