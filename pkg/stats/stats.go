// Package stats provides the numeric primitives shared by the anomaly
// detection and predictive analytics engines: descriptive statistics
// (mean, population standard deviation, median, quartiles) and combined
// z-score / IQR outlier detection.
//
// Quartile positions use sorted-order indexing (floor(n/2), floor(n*0.25),
// floor(n*0.75)), not interpolation. Detection thresholds downstream depend
// on this exact boundary behavior, so it must not be "improved" to an
// interpolated quantile.
package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientData is returned when a computation needs more values
// than were supplied.
var ErrInsufficientData = errors.New("insufficient data")

// Summary holds descriptive statistics for a numeric series.
type Summary struct {
	Mean   float64
	StdDev float64
	Median float64
	Q1     float64
	Q3     float64
	IQR    float64
	Min    float64
	Max    float64
	Count  int
}

// Describe computes a Summary over values.
// Returns ErrInsufficientData for an empty series.
//
// StdDev is the population standard deviation (divide by N, not N-1),
// consistent with the rest of the engine.
func Describe(values []float64) (Summary, error) {
	n := len(values)
	if n == 0 {
		return Summary{}, ErrInsufficientData
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range sorted {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	q1 := sorted[int(math.Floor(float64(n)*0.25))]
	q3 := sorted[int(math.Floor(float64(n)*0.75))]

	return Summary{
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		Median: sorted[n/2],
		Q1:     q1,
		Q3:     q3,
		IQR:    q3 - q1,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Count:  n,
	}, nil
}

// Outlier flags one value in a series as unusually far from the rest.
type Outlier struct {
	// Index is the position of the value in the input series.
	Index int

	// Value is the flagged value.
	Value float64

	// Z is the absolute z-score of the value against the series mean.
	Z float64

	// Method records which rule fired: "z_score" when Z exceeded the
	// z-score threshold, "iqr" when the value fell outside the IQR
	// fence only.
	Method string
}

// Thresholds controls outlier detection. The defaults are calibration
// constants carried over from the production tuning; see DefaultThresholds.
type Thresholds struct {
	// ZScore is the |z| above which a value is an outlier.
	ZScore float64

	// IQRMultiplier widens the quartile fence: [q1 - k*iqr, q3 + k*iqr].
	IQRMultiplier float64
}

// DefaultThresholds returns the standard thresholds: z > 2.5, 1.5x IQR fence.
func DefaultThresholds() Thresholds {
	return Thresholds{ZScore: 2.5, IQRMultiplier: 1.5}
}

// Outliers flags values that are outliers under either the z-score rule or
// the IQR fence rule. A zero standard deviation means a uniform series, and
// no outliers are reported (this guards the z-score division, and a uniform
// series has nothing to flag).
func Outliers(values []float64, s Summary, t Thresholds) []Outlier {
	if s.StdDev == 0 {
		return nil
	}

	lower := s.Q1 - t.IQRMultiplier*s.IQR
	upper := s.Q3 + t.IQRMultiplier*s.IQR

	var out []Outlier
	for i, v := range values {
		z := math.Abs(v-s.Mean) / s.StdDev
		zHit := z > t.ZScore
		iqrHit := v < lower || v > upper
		if !zHit && !iqrHit {
			continue
		}

		method := "iqr"
		if zHit {
			method = "z_score"
		}

		out = append(out, Outlier{Index: i, Value: v, Z: z, Method: method})
	}
	return out
}
