package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cleanloop/binsight/pkg/events"
	"github.com/cleanloop/binsight/pkg/insight"
	"github.com/cleanloop/binsight/pkg/stats"
)

// EventSource supplies the event window for a detection batch. Events come
// back with their bin fields joined (see events.Event).
type EventSource interface {
	RecentEvents(ctx context.Context, since time.Time) ([]events.Event, error)
}

// Store persists detected anomalies and answers the duplicate-suppression
// read. SaveAnomalies is expected to be an idempotent upsert but the engine
// does not rely on it; it only avoids re-submitting within-the-window
// duplicates it can see via RecentAnomalies.
type Store interface {
	RecentAnomalies(ctx context.Context, binID string, since time.Time) ([]Anomaly, error)
	SaveAnomalies(ctx context.Context, anomalies []Anomaly) error
}

// Config holds the detection thresholds. All defaults preserve the
// calibration constants the detectors were tuned with; they are exposed
// here rather than hard-coded so deployments can adjust them.
type Config struct {
	// Window is how far back the batch entry point looks for events.
	Window time.Duration

	// DedupWindow suppresses re-storing an identical (bin, type,
	// severity) anomaly seen within this window. Best-effort: concurrent
	// runs for the same bin may interleave the read and the write, so
	// exactly-once storage is not guaranteed.
	DedupWindow time.Duration

	// MinStatisticalEvents is the series length required by the
	// statistical detector.
	MinStatisticalEvents int

	// MinTemporalEvents is the window length required by the temporal
	// detector.
	MinTemporalEvents int

	// Outliers are the z-score / IQR thresholds for the statistical
	// detector.
	Outliers stats.Thresholds

	// HourlyPeakFactor flags a usage pattern when the busiest hour
	// exceeds this multiple of the hourly mean. WeekdayPeakFactor is the
	// same for weekday buckets.
	HourlyPeakFactor  float64
	WeekdayPeakFactor float64

	// UnknownShare and ContaminatedShare are the material-composition
	// fractions above which the mix is flagged.
	UnknownShare      float64
	ContaminatedShare float64

	// HeavyFactor and LightFactor bound single-deposit weights against
	// the window mean.
	HeavyFactor float64
	LightFactor float64

	// ResidentialEventLimit is the event count above which a residential
	// bin is flagged. UserEventLimit is the per-user equivalent.
	ResidentialEventLimit int
	UserEventLimit        int

	// NightFraction is the share of events in [22:00, 06:00) above which
	// night usage is flagged.
	NightFraction float64

	// SpikeFactor flags an event whose weight exceeds this multiple of
	// its neighbors' average.
	SpikeFactor float64

	// MinEventInterval is the smallest expected gap between consecutive
	// events.
	MinEventInterval time.Duration

	// SeasonalFactor flags any hour bucket exceeding this multiple of the
	// mean hourly count.
	SeasonalFactor float64

	// InsightTimeout bounds the delegated scorer call.
	InsightTimeout time.Duration
}

// DefaultConfig returns the standard detection configuration.
func DefaultConfig() Config {
	return Config{
		Window:                7 * 24 * time.Hour,
		DedupWindow:           time.Hour,
		MinStatisticalEvents:  3,
		MinTemporalEvents:     5,
		Outliers:              stats.DefaultThresholds(),
		HourlyPeakFactor:      3.0,
		WeekdayPeakFactor:     2.0,
		UnknownShare:          0.20,
		ContaminatedShare:     0.10,
		HeavyFactor:           3.0,
		LightFactor:           0.1,
		ResidentialEventLimit: 50,
		UserEventLimit:        20,
		NightFraction:         0.30,
		SpikeFactor:           5.0,
		MinEventInterval:      5 * time.Minute,
		SeasonalFactor:        2.0,
		InsightTimeout:        10 * time.Second,
	}
}

// Engine runs the five detectors and consolidates their output. It holds
// only read-only configuration; per-bin aggregates are allocated per call,
// so concurrent detection of different bins is safe.
type Engine struct {
	cfg     Config
	source  EventSource
	store   Store
	insight insight.Client
	logger  *slog.Logger
}

// NewEngine creates a detection engine. The insight client may be a
// NoopClient when no delegated scorer is configured.
func NewEngine(cfg Config, source EventSource, store Store, client insight.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &insight.NoopClient{}
	}
	return &Engine{
		cfg:     cfg,
		source:  source,
		store:   store,
		insight: client,
		logger:  logger,
	}
}

// Detect runs all detectors over one bin's event window and returns the
// consolidated anomalies, most severe first. An empty window yields no
// anomalies.
func (e *Engine) Detect(ctx context.Context, group []events.Event, profile events.BinProfile) []Anomaly {
	if len(group) == 0 {
		return nil
	}

	var candidates []Anomaly
	candidates = append(candidates, e.detectStatistical(group)...)
	candidates = append(candidates, e.detectPatterns(group)...)
	candidates = append(candidates, e.detectContextual(group, profile)...)
	candidates = append(candidates, e.detectTemporal(group)...)
	candidates = append(candidates, e.detectDelegated(ctx, group)...)

	consolidated := Consolidate(candidates)
	for i := range consolidated {
		consolidated[i].BinID = profile.BinID
	}
	return consolidated
}

// BatchResult summarizes one DetectAndStore run.
type BatchResult struct {
	Bins       int
	Detected   int
	Stored     int
	Suppressed int
	Failures   int
}

// DetectAndStore fetches the recent event window, partitions it by bin,
// detects anomalies per bin and persists them, suppressing any anomaly
// whose (type, severity) was already recorded for that bin within the
// dedup window. A failure for one bin is logged and counted; it never
// aborts the other bins.
func (e *Engine) DetectAndStore(ctx context.Context, now time.Time) (BatchResult, error) {
	var res BatchResult

	since := now.Add(-e.cfg.Window)
	batch, err := e.source.RecentEvents(ctx, since)
	if err != nil {
		return res, fmt.Errorf("fetch recent events: %w", err)
	}

	groups := events.GroupByBin(batch)
	res.Bins = len(groups)

	for binID, group := range groups {
		detected, stored, suppressed, err := e.analyzeBin(ctx, binID, group, now)
		res.Detected += detected
		res.Stored += stored
		res.Suppressed += suppressed
		if err != nil {
			res.Failures++
			e.logger.Error("bin analysis failed", "bin", binID, "error", err)
		}
	}

	e.logger.Info("detection batch complete",
		"bins", res.Bins,
		"detected", res.Detected,
		"stored", res.Stored,
		"suppressed", res.Suppressed,
		"failures", res.Failures,
	)
	return res, nil
}

func (e *Engine) analyzeBin(ctx context.Context, binID string, group []events.Event, now time.Time) (detected, stored, suppressed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()

	profile := events.BuildProfile(group)
	anomalies := e.Detect(ctx, group, profile)
	detected = len(anomalies)
	if detected == 0 {
		return 0, 0, 0, nil
	}

	// Duplicate suppression is a read-then-write sequence; if the read
	// fails we store everything rather than lose signal.
	seen := make(map[string]bool)
	recent, readErr := e.store.RecentAnomalies(ctx, binID, now.Add(-e.cfg.DedupWindow))
	if readErr != nil {
		e.logger.Warn("dedup read failed, storing without suppression", "bin", binID, "error", readErr)
	} else {
		for _, a := range recent {
			seen[a.Type+"|"+string(a.Severity)] = true
		}
	}

	toStore := make([]Anomaly, 0, detected)
	for _, a := range anomalies {
		if seen[a.Type+"|"+string(a.Severity)] {
			suppressed++
			continue
		}
		a.DetectedAt = now.UTC()
		toStore = append(toStore, a)
	}

	if len(toStore) == 0 {
		return detected, 0, suppressed, nil
	}
	if err := e.store.SaveAnomalies(ctx, toStore); err != nil {
		return detected, 0, suppressed, fmt.Errorf("save anomalies: %w", err)
	}
	return detected, len(toStore), suppressed, nil
}
