// Package predict implements horizon-based predictive analytics for bins:
// capacity, usage, collection scheduling, revenue and maintenance forecasts
// derived from up to 30 days of event history, with decaying confidence for
// longer horizons.
//
// Predictions are recomputed on every call as a pure function of the
// supplied history; no cross-call state is retained. A bin with no history
// gets a structurally complete default prediction with low confidence
// rather than an error.
package predict

import (
	"time"

	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/insight"
)

// Horizon names a forecast window.
type Horizon string

const (
	HorizonShort  Horizon = "short"  // 24h
	HorizonMedium Horizon = "medium" // 168h (one week)
	HorizonLong   Horizon = "long"   // 720h (one month)
)

// Horizons lists all forecast windows, shortest first.
var Horizons = []Horizon{HorizonShort, HorizonMedium, HorizonLong}

// Hours returns the horizon length in hours.
func (h Horizon) Hours() float64 {
	switch h {
	case HorizonMedium:
		return 168
	case HorizonLong:
		return 720
	default:
		return 24
	}
}

// Days returns the horizon length in days.
func (h Horizon) Days() float64 { return h.Hours() / 24 }

// factor is the confidence decay for the horizon: further out is less
// certain.
func (h Horizon) factor() float64 {
	switch h {
	case HorizonMedium:
		return 0.9
	case HorizonLong:
		return 0.8
	default:
		return 1.0
	}
}

// Cadence is a recommended collection frequency.
type Cadence string

const (
	CadenceTwiceDaily    Cadence = "twice_daily"
	CadenceDaily         Cadence = "daily"
	CadenceEveryOtherDay Cadence = "every_other_day"
	CadenceWeekly        Cadence = "weekly"
)

// CapacityForecast is the expected accumulated weight over one horizon,
// including the safety buffer.
type CapacityForecast struct {
	PredictedKg float64 `json:"predictedKg"`
	Confidence  float64 `json:"confidence"`
}

// UsageForecast describes expected usage patterns and volumes.
type UsageForecast struct {
	// PeakHours are the busiest hours of day (at most five, each holding
	// more than the peak-share threshold of events), busiest first.
	PeakHours []int `json:"peakHours"`

	// PeakWeekday is the busiest day of week (0 = Sunday).
	PeakWeekday int `json:"peakWeekday"`

	// SeasonalRatio compares the current month's activity to the average
	// month observed in the history.
	SeasonalRatio float64 `json:"seasonalRatio"`

	// ExpectedEvents extrapolates the per-day event rate per horizon,
	// adjusted by the seasonal ratio.
	ExpectedEvents map[Horizon]float64 `json:"expectedEvents"`

	Confidence float64 `json:"confidence"`
}

// CollectionPlan recommends a collection cadence and costs it against the
// current one.
type CollectionPlan struct {
	CurrentCadence       Cadence `json:"currentCadence"`
	RecommendedCadence   Cadence `json:"recommendedCadence"`
	CurrentDailyCost     float64 `json:"currentDailyCost"`
	RecommendedDailyCost float64 `json:"recommendedDailyCost"`

	// DailySavings is current minus recommended cost; negative means the
	// recommendation costs more (the bin is under-served today).
	DailySavings float64 `json:"dailySavings"`

	Confidence float64 `json:"confidence"`
}

// RevenueProjection is the projected revenue over one horizon.
type RevenueProjection struct {
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
}

// RevenueForecast projects material revenue from the daily average weight.
type RevenueForecast struct {
	DailyRevenue       float64                       `json:"dailyRevenue"`
	PurityBonusApplied bool                          `json:"purityBonusApplied"`
	Projected          map[Horizon]RevenueProjection `json:"projected"`
}

// Risk is a maintenance risk flag.
type Risk struct {
	Type     string           `json:"type"`
	Severity anomaly.Severity `json:"severity"`
	Detail   string           `json:"detail"`
}

// MaintenanceForecast estimates wear-driven maintenance needs.
type MaintenanceForecast struct {
	// UsageIntensity is dailyAverageWeight / ratedCapacity, capped at 1.
	UsageIntensity  float64   `json:"usageIntensity"`
	IntervalDays    int       `json:"intervalDays"`
	NextMaintenance time.Time `json:"nextMaintenance"`
	Risks           []Risk    `json:"risks,omitempty"`
	Confidence      float64   `json:"confidence"`
}

// Prediction is the complete forecast bundle for one bin.
type Prediction struct {
	BinID       string    `json:"binId"`
	GeneratedAt time.Time `json:"generatedAt"`

	// DataPoints is the number of history events the forecast is built
	// on; zero means the default prediction.
	DataPoints int  `json:"dataPoints"`
	Defaulted  bool `json:"defaulted,omitempty"`

	Capacity    map[Horizon]CapacityForecast `json:"capacity"`
	Usage       UsageForecast                `json:"usage"`
	Collection  CollectionPlan               `json:"collection"`
	Revenue     RevenueForecast              `json:"revenue"`
	Maintenance MaintenanceForecast          `json:"maintenance"`
	Insights    insight.Narrative            `json:"insights"`
}

// Config holds the forecasting constants. Defaults preserve the calibrated
// production values; the cost table and rate-per-kg in particular are
// compatibility constants, externalized here rather than hard-coded.
type Config struct {
	// HistoryWindow is how much event history feeds a prediction.
	HistoryWindow time.Duration

	// SafetyBuffer multiplies capacity forecasts (1.2 = +20%).
	SafetyBuffer float64

	// RatePerKg is the revenue per collected kilogram.
	RatePerKg float64

	// PurityBonus is the revenue multiplier bonus applied when the mean
	// purity exceeds PurityBonusThreshold.
	PurityBonus          float64
	PurityBonusThreshold float64

	// ContaminatedPurity is the purity below which an event counts as
	// contaminated; ContaminationRiskRate is the event fraction above
	// which a maintenance risk is raised.
	ContaminatedPurity    float64
	ContaminationRiskRate float64

	// PeakHourShare is the minimum share of events an hour needs to
	// count as a peak hour.
	PeakHourShare float64

	// CadenceCosts is the fixed daily cost per collection cadence,
	// arbitrary currency units.
	CadenceCosts map[Cadence]float64

	// CurrentCadence is the cadence bins are assumed to be collected at
	// today, for the savings computation.
	CurrentCadence Cadence

	// DefaultDailyKg seeds the default prediction when a bin has no
	// history.
	DefaultDailyKg float64

	// InsightTimeout bounds the delegated narrative call.
	InsightTimeout time.Duration
}

// DefaultConfig returns the standard forecasting configuration.
func DefaultConfig() Config {
	return Config{
		HistoryWindow:         30 * 24 * time.Hour,
		SafetyBuffer:          1.2,
		RatePerKg:             2.5,
		PurityBonus:           0.10,
		PurityBonusThreshold:  0.9,
		ContaminatedPurity:    0.7,
		ContaminationRiskRate: 0.2,
		PeakHourShare:         0.08,
		CadenceCosts: map[Cadence]float64{
			CadenceTwiceDaily:    80,
			CadenceDaily:         50,
			CadenceEveryOtherDay: 30,
			CadenceWeekly:        20,
		},
		CurrentCadence: CadenceDaily,
		DefaultDailyKg: 10,
		InsightTimeout: 10 * time.Second,
	}
}
