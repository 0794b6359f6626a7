package predict

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/insight"
)

// EventSource supplies a bin's event history, joined with its bin fields.
type EventSource interface {
	BinEvents(ctx context.Context, binID string, since time.Time) ([]events.Event, error)
}

// Engine computes predictions. It holds only read-only configuration, so
// concurrent predictions for different bins are safe.
type Engine struct {
	cfg     Config
	source  EventSource
	insight insight.Client
	logger  *slog.Logger
}

// NewEngine creates a prediction engine. The insight client may be a
// NoopClient when no delegated scorer is configured.
func NewEngine(cfg Config, source EventSource, client insight.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &insight.NoopClient{}
	}
	return &Engine{cfg: cfg, source: source, insight: client, logger: logger}
}

// history summarizes a bin's event window once so the individual forecasts
// don't recompute the same aggregates.
type history struct {
	events            []events.Event
	profile           events.BinProfile
	dataPoints        int
	spanDays          float64
	dailyAvgKg        float64
	meanPurity        float64
	contaminationRate float64
}

// Predict computes the full forecast bundle for a bin at the given time.
// It never fails: missing history or an unreachable store degrades to the
// documented default prediction (confidence <= 0.5), and a failing
// delegated scorer degrades to the fallback narrative.
func (e *Engine) Predict(ctx context.Context, binID string, now time.Time) Prediction {
	since := now.Add(-e.cfg.HistoryWindow)

	evts, err := e.source.BinEvents(ctx, binID, since)
	if err != nil {
		e.logger.Warn("event history unavailable, returning default prediction",
			"bin", binID, "error", err)
		return e.defaultPrediction(binID, now)
	}
	if len(evts) == 0 {
		return e.defaultPrediction(binID, now)
	}

	h := e.summarize(evts, now)

	p := Prediction{
		BinID:       binID,
		GeneratedAt: now.UTC(),
		DataPoints:  h.dataPoints,
		Capacity:    e.forecastCapacity(h),
		Usage:       e.forecastUsage(h, now),
		Maintenance: e.forecastMaintenance(h, now),
	}
	p.Collection = e.planCollection(h)
	p.Revenue = e.forecastRevenue(h)
	p.Insights = e.narrative(ctx, binID, p)
	return p
}

func (e *Engine) summarize(evts []events.Event, now time.Time) history {
	ordered := events.SortByTime(evts)

	totalKg := 0.0
	puritySum := 0.0
	contaminated := 0
	for _, ev := range ordered {
		if ev.WeightKg > 0 {
			totalKg += ev.WeightKg
		}
		purity := ev.Purity()
		puritySum += purity
		if purity < e.cfg.ContaminatedPurity {
			contaminated++
		}
	}

	span := ordered[len(ordered)-1].Timestamp.Sub(ordered[0].Timestamp).Hours() / 24
	spanDays := math.Max(1, span)

	return history{
		events:            ordered,
		profile:           events.BuildProfile(ordered),
		dataPoints:        len(ordered),
		spanDays:          spanDays,
		dailyAvgKg:        totalKg / spanDays,
		meanPurity:        puritySum / float64(len(ordered)),
		contaminationRate: float64(contaminated) / float64(len(ordered)),
	}
}

// confidence is the shared formula: data volume raises it, data age and
// horizon distance lower it. Result is rounded to two decimals and always
// within [0,1].
func (e *Engine) confidence(h history, horizon Horizon) float64 {
	base := math.Min(0.95, float64(h.dataPoints)/100)
	recency := math.Max(0.5, 1-h.spanDays/30)
	c := base * recency * horizon.factor()
	c = math.Round(c*100) / 100
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// defaultPrediction is the fixed placeholder returned when a bin has no
// usable history. Every field is populated and every confidence stays at
// or below 0.5.
func (e *Engine) defaultPrediction(binID string, now time.Time) Prediction {
	const defaultConfidence = 0.3

	capacity := make(map[Horizon]CapacityForecast, len(Horizons))
	expected := make(map[Horizon]float64, len(Horizons))
	projected := make(map[Horizon]RevenueProjection, len(Horizons))
	dailyRevenue := e.cfg.DefaultDailyKg * e.cfg.RatePerKg
	for _, hz := range Horizons {
		capacity[hz] = CapacityForecast{
			PredictedKg: e.cfg.DefaultDailyKg * hz.Days() * e.cfg.SafetyBuffer,
			Confidence:  defaultConfidence,
		}
		expected[hz] = 0
		projected[hz] = RevenueProjection{
			Amount:     dailyRevenue * hz.Days(),
			Confidence: defaultConfidence,
		}
	}

	return Prediction{
		BinID:       binID,
		GeneratedAt: now.UTC(),
		Defaulted:   true,
		Capacity:    capacity,
		Usage: UsageForecast{
			SeasonalRatio:  1,
			ExpectedEvents: expected,
			Confidence:     defaultConfidence,
		},
		Collection: CollectionPlan{
			CurrentCadence:       e.cfg.CurrentCadence,
			RecommendedCadence:   CadenceWeekly,
			CurrentDailyCost:     e.cfg.CadenceCosts[e.cfg.CurrentCadence],
			RecommendedDailyCost: e.cfg.CadenceCosts[CadenceWeekly],
			DailySavings:         e.cfg.CadenceCosts[e.cfg.CurrentCadence] - e.cfg.CadenceCosts[CadenceWeekly],
			Confidence:           defaultConfidence,
		},
		Revenue: RevenueForecast{
			DailyRevenue: dailyRevenue,
			Projected:    projected,
		},
		Maintenance: MaintenanceForecast{
			UsageIntensity:  math.Min(1, e.cfg.DefaultDailyKg/events.DefaultRatedCapacityKg),
			IntervalDays:    30,
			NextMaintenance: now.UTC().AddDate(0, 0, 30),
			Confidence:      defaultConfidence,
		},
		Insights: insight.FallbackNarrative(),
	}
}

// narrative asks the delegated scorer for peak-time/optimization/risk text
// referencing the numeric forecast. Failure degrades to the fixed fallback.
func (e *Engine) narrative(ctx context.Context, binID string, p Prediction) insight.Narrative {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.InsightTimeout)
	defer cancel()

	summary := map[string]any{
		"dailyAverageKg":     math.Round(p.Capacity[HorizonShort].PredictedKg/e.cfg.SafetyBuffer*100) / 100,
		"recommendedCadence": string(p.Collection.RecommendedCadence),
		"peakHours":          p.Usage.PeakHours,
		"usageIntensity":     p.Maintenance.UsageIntensity,
	}

	n, err := e.insight.Predict(ctx, binID, summary)
	if err != nil {
		e.logger.Warn("delegated narrative unavailable, using fallback",
			"bin", binID, "backend", e.insight.Name(), "error", err)
		return insight.FallbackNarrative()
	}
	return n
}
