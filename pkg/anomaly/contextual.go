package anomaly

import (
	"github.com/cleanloop/binsight/pkg/events"
)

// detectContextual applies location, time-of-day and per-user context to
// the window.
func (e *Engine) detectContextual(group []events.Event, profile events.BinProfile) []Anomaly {
	var out []Anomaly

	if profile.LocationClass == "residential" && len(group) > e.cfg.ResidentialEventLimit {
		out = append(out, Anomaly{
			Type:       TypeHighUsageResidential,
			Severity:   SeverityLow,
			Confidence: 0.6,
			Source:     "contextual",
			Details: map[string]any{
				"eventCount": len(group),
				"limit":      e.cfg.ResidentialEventLimit,
			},
		})
	}

	night := 0
	for _, ev := range group {
		h := ev.Timestamp.Hour()
		if h >= 22 || h < 6 {
			night++
		}
	}
	if len(group) > 0 {
		if fraction := float64(night) / float64(len(group)); fraction > e.cfg.NightFraction {
			out = append(out, Anomaly{
				Type:       TypeUnusualNightUsage,
				Severity:   SeverityMedium,
				Confidence: 0.7,
				Source:     "contextual",
				Details: map[string]any{
					"nightEvents":   night,
					"totalEvents":   len(group),
					"nightFraction": fraction,
				},
			})
		}
	}

	perUser := make(map[string]int)
	for _, ev := range group {
		if ev.UserID != "" {
			perUser[ev.UserID]++
		}
	}
	for userID, count := range perUser {
		if count > e.cfg.UserEventLimit {
			out = append(out, Anomaly{
				Type:       TypeHighFrequencyUser,
				Severity:   SeverityLow,
				Confidence: 0.6,
				Source:     "contextual",
				Details: map[string]any{
					"userId":     userID,
					"eventCount": count,
				},
			})
		}
	}

	return out
}
