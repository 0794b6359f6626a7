package anomaly

import (
	"fmt"

	"github.com/cleanloop/binsight/pkg/events"
)

// detectPatterns covers the pattern-based checks: usage-time histograms,
// material composition and per-deposit weight distribution.
func (e *Engine) detectPatterns(group []events.Event) []Anomaly {
	var out []Anomaly
	out = append(out, e.checkUsagePattern(group)...)
	out = append(out, e.checkMaterialComposition(group)...)
	out = append(out, e.checkWeightDistribution(group)...)
	return out
}

// checkUsagePattern builds 24-bucket hourly and 7-bucket weekday histograms
// and flags the window when one bucket dominates: busiest hour above
// HourlyPeakFactor times the hourly mean, or busiest weekday above
// WeekdayPeakFactor times the weekday mean.
func (e *Engine) checkUsagePattern(group []events.Event) []Anomaly {
	if len(group) == 0 {
		return nil
	}

	var hourly [24]int
	var weekday [7]int
	for _, ev := range group {
		hourly[ev.Timestamp.Hour()]++
		weekday[int(ev.Timestamp.Weekday())]++
	}

	total := float64(len(group))
	hourlyMean := total / 24
	weekdayMean := total / 7

	maxHour, maxHourCount := 0, 0
	for h, c := range hourly {
		if c > maxHourCount {
			maxHour, maxHourCount = h, c
		}
	}
	maxDay, maxDayCount := 0, 0
	for d, c := range weekday {
		if c > maxDayCount {
			maxDay, maxDayCount = d, c
		}
	}

	details := map[string]any{}
	axes := ""
	if float64(maxHourCount) > e.cfg.HourlyPeakFactor*hourlyMean {
		axes = "hourly"
		details["peakHour"] = maxHour
		details["hourlyRatio"] = float64(maxHourCount) / hourlyMean
	}
	if float64(maxDayCount) > e.cfg.WeekdayPeakFactor*weekdayMean {
		if axes != "" {
			axes += "+weekday"
		} else {
			axes = "weekday"
		}
		details["peakWeekday"] = maxDay
		details["weekdayRatio"] = float64(maxDayCount) / weekdayMean
	}
	if axes == "" {
		return nil
	}
	details["axis"] = axes

	return []Anomaly{{
		Type:       TypeUnusualUsagePattern,
		Severity:   SeverityMedium,
		Confidence: 0.8,
		Source:     "pattern",
		Details:    details,
	}}
}

// checkMaterialComposition aggregates material counts across the window and
// flags an unusual mix when the unknown share exceeds UnknownShare or the
// contaminated share exceeds ContaminatedShare.
func (e *Engine) checkMaterialComposition(group []events.Event) []Anomaly {
	counts := make(map[string]int)
	total := 0
	for _, ev := range group {
		for category, n := range ev.MaterialCounts {
			if n <= 0 {
				continue
			}
			counts[category] += n
			total += n
		}
	}
	if total == 0 {
		return nil
	}

	var out []Anomaly
	if share := float64(counts["unknown"]) / float64(total); share > e.cfg.UnknownShare {
		out = append(out, Anomaly{
			Type:       TypeUnusualMaterialMix,
			Severity:   SeverityMedium,
			Confidence: 0.8,
			Source:     "pattern",
			Details: map[string]any{
				"unknownSharePct": share * 100,
			},
		})
	}
	if share := float64(counts["contaminated"]) / float64(total); share > e.cfg.ContaminatedShare {
		out = append(out, Anomaly{
			Type:       TypeUnusualMaterialMix,
			Severity:   SeverityMedium,
			Confidence: 0.8,
			Source:     "pattern",
			Details: map[string]any{
				"contaminatedSharePct": share * 100,
			},
		})
	}
	return out
}

// checkWeightDistribution compares every deposit against the window's mean
// weight: above HeavyFactor times the mean is unusually heavy, below
// LightFactor times the mean is unusually light. Zero-weight readings
// (fill-only events) are excluded from both the mean and the light check.
func (e *Engine) checkWeightDistribution(group []events.Event) []Anomaly {
	sum := 0.0
	n := 0
	for _, ev := range group {
		if ev.WeightKg > 0 {
			sum += ev.WeightKg
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)

	var out []Anomaly
	for _, ev := range group {
		if ev.WeightKg <= 0 {
			continue
		}
		switch {
		case ev.WeightKg > e.cfg.HeavyFactor*mean:
			out = append(out, Anomaly{
				EventID:    ev.ID,
				Type:       TypeUnusuallyHeavyDeposits,
				Severity:   SeverityMedium,
				Confidence: 0.7,
				Source:     "pattern",
				Details: map[string]any{
					"weightKg":   ev.WeightKg,
					"meanKg":     mean,
					"ratio":      ev.WeightKg / mean,
					"comparison": fmt.Sprintf("> %.1fx mean", e.cfg.HeavyFactor),
				},
			})
		case ev.WeightKg < e.cfg.LightFactor*mean:
			out = append(out, Anomaly{
				EventID:    ev.ID,
				Type:       TypeUnusuallyLightDeposits,
				Severity:   SeverityLow,
				Confidence: 0.6,
				Source:     "pattern",
				Details: map[string]any{
					"weightKg": ev.WeightKg,
					"meanKg":   mean,
				},
			})
		}
	}
	return out
}
