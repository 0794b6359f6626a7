package anomaly

import (
	"reflect"
	"testing"
)

func TestSeverityRank(t *testing.T) {
	if SeverityHigh.Rank() != 3 || SeverityMedium.Rank() != 2 || SeverityLow.Rank() != 1 {
		t.Fatal("severity ranks out of order")
	}
	if Severity("critical").Rank() != 0 {
		t.Fatal("unknown severity should rank 0")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"high":         SeverityHigh,
		"medium":       SeverityMedium,
		"low":          SeverityLow,
		"catastrophic": SeverityLow,
		"":             SeverityLow,
	}
	for in, want := range cases {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	if ClampConfidence(-0.3) != 0 {
		t.Error("negative confidence not clamped to 0")
	}
	if ClampConfidence(1.7) != 1 {
		t.Error("confidence above 1 not clamped")
	}
	if ClampConfidence(0.42) != 0.42 {
		t.Error("in-range confidence altered")
	}
}

func TestConsolidate_MergesByTypeAndSeverity(t *testing.T) {
	candidates := []Anomaly{
		{Type: TypeUnusuallyFrequentEvents, Severity: SeverityMedium, Confidence: 0.7, Details: map[string]any{"gapSeconds": 120.0}},
		{Type: TypeUnusuallyFrequentEvents, Severity: SeverityMedium, Confidence: 0.9, Details: map[string]any{"gapSeconds": 30.0, "extra": true}},
		{Type: TypeSeasonalUsagePattern, Severity: SeverityLow, Confidence: 0.6},
	}

	got := Consolidate(candidates)
	if len(got) != 2 {
		t.Fatalf("got %d anomalies, want 2: %v", len(got), got)
	}

	// Representative keeps the max confidence and the later detail value.
	rep := got[0]
	if rep.Type != TypeUnusuallyFrequentEvents {
		t.Fatalf("first anomaly = %q, want frequent events (medium outranks low)", rep.Type)
	}
	if rep.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", rep.Confidence)
	}
	if rep.Details["gapSeconds"] != 30.0 || rep.Details["extra"] != true {
		t.Errorf("details = %v, want later values merged in", rep.Details)
	}
}

func TestConsolidate_SortsBySeverityDescending(t *testing.T) {
	candidates := []Anomaly{
		{Type: "a", Severity: SeverityLow, Confidence: 0.5},
		{Type: "b", Severity: SeverityHigh, Confidence: 0.5},
		{Type: "c", Severity: SeverityMedium, Confidence: 0.5},
		{Type: "d", Severity: SeverityMedium, Confidence: 0.5},
	}
	got := Consolidate(candidates)
	order := []string{got[0].Type, got[1].Type, got[2].Type, got[3].Type}
	// high first, then the two mediums in encounter order, then low.
	want := []string{"b", "c", "d", "a"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestConsolidate_Idempotent(t *testing.T) {
	candidates := []Anomaly{
		{Type: "a", Severity: SeverityMedium, Confidence: 0.7, Details: map[string]any{"k": 1}},
		{Type: "a", Severity: SeverityMedium, Confidence: 0.8, Details: map[string]any{"k": 2}},
		{Type: "a", Severity: SeverityHigh, Confidence: 0.9},
		{Type: "b", Severity: SeverityLow, Confidence: 0.4},
	}
	once := Consolidate(candidates)
	twice := Consolidate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("consolidation not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestConsolidate_ClampsConfidence(t *testing.T) {
	got := Consolidate([]Anomaly{{Type: "a", Severity: SeverityLow, Confidence: 2.5}})
	if got[0].Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", got[0].Confidence)
	}
}

func TestConsolidate_Empty(t *testing.T) {
	if got := Consolidate(nil); len(got) != 0 {
		t.Errorf("Consolidate(nil) = %v, want empty", got)
	}
}
