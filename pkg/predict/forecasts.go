package predict

import (
	"math"
	"sort"
	"time"

	"github.com/cleanloop/binsight/pkg/anomaly"
)

// forecastCapacity projects accumulated weight per horizon:
// dailyAverageWeight x horizon days x safety buffer.
func (e *Engine) forecastCapacity(h history) map[Horizon]CapacityForecast {
	out := make(map[Horizon]CapacityForecast, len(Horizons))
	for _, hz := range Horizons {
		out[hz] = CapacityForecast{
			PredictedKg: h.dailyAvgKg * hz.Days() * e.cfg.SafetyBuffer,
			Confidence:  e.confidence(h, hz),
		}
	}
	return out
}

// forecastUsage derives peak hours/days from histograms and extrapolates
// event counts per horizon, adjusted by the seasonal ratio of the current
// month against the average observed month.
func (e *Engine) forecastUsage(h history, now time.Time) UsageForecast {
	var hourly [24]int
	var weekday [7]int
	months := make(map[string]int)
	for _, ev := range h.events {
		hourly[ev.Timestamp.Hour()]++
		weekday[int(ev.Timestamp.Weekday())]++
		months[ev.Timestamp.Format("2006-01")]++
	}

	total := float64(h.dataPoints)

	// Peak hours: up to five hours holding more than the peak share,
	// busiest first.
	type hourCount struct {
		hour  int
		count int
	}
	var peaks []hourCount
	for hr, c := range hourly {
		if float64(c)/total > e.cfg.PeakHourShare {
			peaks = append(peaks, hourCount{hr, c})
		}
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].count > peaks[j].count })
	if len(peaks) > 5 {
		peaks = peaks[:5]
	}
	peakHours := make([]int, 0, len(peaks))
	for _, p := range peaks {
		peakHours = append(peakHours, p.hour)
	}

	peakDay := 0
	for d, c := range weekday {
		if c > weekday[peakDay] {
			peakDay = d
		}
	}

	ratio := 1.0
	if len(months) > 0 {
		monthlyAvg := total / float64(len(months))
		if monthlyAvg > 0 {
			ratio = float64(months[now.Format("2006-01")]) / monthlyAvg
		}
	}

	perDay := total / h.spanDays
	expected := make(map[Horizon]float64, len(Horizons))
	for _, hz := range Horizons {
		expected[hz] = math.Round(perDay*hz.Days()*ratio*100) / 100
	}

	return UsageForecast{
		PeakHours:      peakHours,
		PeakWeekday:    peakDay,
		SeasonalRatio:  math.Round(ratio*100) / 100,
		ExpectedEvents: expected,
		Confidence:     e.confidence(h, HorizonShort),
	}
}

// planCollection classifies the recommended cadence by the daily load
// against rated capacity and prices the change with the fixed cost table.
func (e *Engine) planCollection(h history) CollectionPlan {
	capacity := h.profile.RatedCapacityKg

	var recommended Cadence
	switch {
	case h.dailyAvgKg > 0.8*capacity:
		recommended = CadenceTwiceDaily
	case h.dailyAvgKg > 0.5*capacity:
		recommended = CadenceDaily
	case h.dailyAvgKg > 0.3*capacity:
		recommended = CadenceEveryOtherDay
	default:
		recommended = CadenceWeekly
	}

	current := e.cfg.CurrentCadence
	currentCost := e.cfg.CadenceCosts[current]
	recommendedCost := e.cfg.CadenceCosts[recommended]

	return CollectionPlan{
		CurrentCadence:       current,
		RecommendedCadence:   recommended,
		CurrentDailyCost:     currentCost,
		RecommendedDailyCost: recommendedCost,
		DailySavings:         currentCost - recommendedCost,
		Confidence:           e.confidence(h, HorizonMedium),
	}
}

// forecastRevenue prices the daily average weight at the per-kg rate, with
// a purity bonus when the window's mean purity clears the threshold.
func (e *Engine) forecastRevenue(h history) RevenueForecast {
	daily := h.dailyAvgKg * e.cfg.RatePerKg
	bonus := h.meanPurity > e.cfg.PurityBonusThreshold
	if bonus {
		daily *= 1 + e.cfg.PurityBonus
	}

	projected := make(map[Horizon]RevenueProjection, len(Horizons))
	for _, hz := range Horizons {
		projected[hz] = RevenueProjection{
			Amount:     math.Round(daily*hz.Days()*100) / 100,
			Confidence: e.confidence(h, hz),
		}
	}

	return RevenueForecast{
		DailyRevenue:       math.Round(daily*100) / 100,
		PurityBonusApplied: bonus,
		Projected:          projected,
	}
}

// forecastMaintenance schedules the next service from usage intensity and
// raises risk flags for overload and contamination.
func (e *Engine) forecastMaintenance(h history, now time.Time) MaintenanceForecast {
	intensity := math.Min(1, h.dailyAvgKg/h.profile.RatedCapacityKg)

	interval := 30
	if intensity > 0.8 {
		interval = 14
	} else if intensity > 0.5 {
		interval = 21
	}

	var risks []Risk
	if intensity > 0.9 {
		risks = append(risks, Risk{
			Type:     "overload_risk",
			Severity: anomaly.SeverityHigh,
			Detail:   "usage intensity above 90% of rated capacity",
		})
	}
	if h.contaminationRate > e.cfg.ContaminationRiskRate {
		risks = append(risks, Risk{
			Type:     "contamination_risk",
			Severity: anomaly.SeverityMedium,
			Detail:   "more than 20% of deposits below acceptable purity",
		})
	}

	return MaintenanceForecast{
		UsageIntensity:  math.Round(intensity*100) / 100,
		IntervalDays:    interval,
		NextMaintenance: now.UTC().AddDate(0, 0, interval),
		Risks:           risks,
		Confidence:      e.confidence(h, HorizonMedium),
	}
}
