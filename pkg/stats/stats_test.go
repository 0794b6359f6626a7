package stats

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDescribe_Empty(t *testing.T) {
	_, err := Describe(nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestDescribe_Basic(t *testing.T) {
	// values sorted: [1 2 3 4 5], n=5
	// mean = 3, population variance = (4+1+0+1+4)/5 = 2
	// median = sorted[2] = 3, q1 = sorted[1] = 2, q3 = sorted[3] = 4
	s, err := Describe([]float64{5, 3, 1, 4, 2})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !almostEqual(s.Mean, 3) {
		t.Errorf("Mean = %v, want 3", s.Mean)
	}
	if !almostEqual(s.StdDev, math.Sqrt(2)) {
		t.Errorf("StdDev = %v, want sqrt(2)", s.StdDev)
	}
	if s.Median != 3 || s.Q1 != 2 || s.Q3 != 4 {
		t.Errorf("median/q1/q3 = %v/%v/%v, want 3/2/4", s.Median, s.Q1, s.Q3)
	}
	if !almostEqual(s.IQR, 2) {
		t.Errorf("IQR = %v, want 2", s.IQR)
	}
	if s.Min != 1 || s.Max != 5 {
		t.Errorf("min/max = %v/%v, want 1/5", s.Min, s.Max)
	}
}

func TestDescribe_SingleValue(t *testing.T) {
	s, err := Describe([]float64{7})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if s.StdDev != 0 {
		t.Errorf("StdDev = %v, want 0", s.StdDev)
	}
	if s.Median != 7 || s.Q1 != 7 || s.Q3 != 7 {
		t.Errorf("median/q1/q3 = %v/%v/%v, want 7/7/7", s.Median, s.Q1, s.Q3)
	}
}

func TestDescribe_QuartileOrdering(t *testing.T) {
	cases := [][]float64{
		{1},
		{2, 1},
		{3, 1, 2},
		{10, 10, 10, 10, 50},
		{0.5, 8, 2, 2, 9, 100, 4},
	}
	for _, values := range cases {
		s, err := Describe(values)
		if err != nil {
			t.Fatalf("Describe(%v): %v", values, err)
		}
		if s.StdDev < 0 {
			t.Errorf("Describe(%v).StdDev = %v, want >= 0", values, s.StdDev)
		}
		if s.Q1 > s.Median || s.Median > s.Q3 {
			t.Errorf("Describe(%v): q1=%v median=%v q3=%v not ordered", values, s.Q1, s.Median, s.Q3)
		}
	}
}

func TestOutliers_UniformSeries(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	s, _ := Describe(values)
	if got := Outliers(values, s, DefaultThresholds()); len(got) != 0 {
		t.Fatalf("Outliers on uniform series = %v, want none", got)
	}
}

func TestOutliers_IQRCatchesLowZ(t *testing.T) {
	// [10 10 10 10 50]: mean = 18, population stddev = sqrt((64*4+1024)/5) = 16
	// z(50) = 32/16 = 2.0 < 2.5, so the z rule does not fire.
	// q1 = sorted[1] = 10, q3 = sorted[3] = 10, iqr = 0, fence = [10, 10]
	// 50 is outside the fence -> flagged via "iqr".
	values := []float64{10, 10, 10, 10, 50}
	s, _ := Describe(values)
	got := Outliers(values, s, DefaultThresholds())
	if len(got) != 1 {
		t.Fatalf("got %d outliers, want 1: %v", len(got), got)
	}
	o := got[0]
	if o.Index != 4 || o.Value != 50 {
		t.Errorf("outlier = %+v, want index 4 value 50", o)
	}
	if o.Method != "iqr" {
		t.Errorf("method = %q, want %q", o.Method, "iqr")
	}
	if o.Z > 2.5 {
		t.Errorf("z = %v, expected below 2.5", o.Z)
	}
}

func TestOutliers_ZScoreMethodTag(t *testing.T) {
	// A single extreme value among many identical ones drives z above 2.5.
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 200}
	s, _ := Describe(values)
	got := Outliers(values, s, DefaultThresholds())
	if len(got) != 1 {
		t.Fatalf("got %d outliers, want 1: %v", len(got), got)
	}
	if got[0].Method != "z_score" {
		t.Errorf("method = %q, want %q", got[0].Method, "z_score")
	}
	if got[0].Z <= 2.5 {
		t.Errorf("z = %v, want > 2.5", got[0].Z)
	}
}
