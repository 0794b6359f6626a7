package events

import (
	"testing"
	"time"
)

func ts(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
}

func TestGroupByBin_Partitions(t *testing.T) {
	batch := []Event{
		{ID: "e1", BinID: "a"},
		{ID: "e2", BinID: "b"},
		{ID: "e3", BinID: "a"},
		{ID: "e4", BinID: "c"},
		{ID: "e5", BinID: "b"},
	}

	groups := GroupByBin(batch)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}

	// Every event belongs to exactly one group and order is preserved.
	total := 0
	for bin, group := range groups {
		total += len(group)
		for _, e := range group {
			if e.BinID != bin {
				t.Errorf("event %s grouped under %q", e.ID, bin)
			}
		}
	}
	if total != len(batch) {
		t.Errorf("grouped %d events, want %d", total, len(batch))
	}
	if groups["a"][0].ID != "e1" || groups["a"][1].ID != "e3" {
		t.Errorf("group a order = %v, want e1,e3", groups["a"])
	}
}

func TestGroupByBin_Empty(t *testing.T) {
	if groups := GroupByBin(nil); len(groups) != 0 {
		t.Fatalf("got %d groups, want 0", len(groups))
	}
}

func TestBuildProfile_Defaults(t *testing.T) {
	p := BuildProfile([]Event{{BinID: "a"}})
	if p.LocationClass != DefaultLocationClass {
		t.Errorf("LocationClass = %q, want %q", p.LocationClass, DefaultLocationClass)
	}
	if p.RatedCapacityKg != DefaultRatedCapacityKg {
		t.Errorf("RatedCapacityKg = %v, want %v", p.RatedCapacityKg, DefaultRatedCapacityKg)
	}
	if p.BinID != "a" {
		t.Errorf("BinID = %q, want %q", p.BinID, "a")
	}
}

func TestBuildProfile_FromFirstEvent(t *testing.T) {
	group := []Event{
		{BinID: "a", LocationClass: "residential", LocationLabel: "Main St 4", RatedCapacityKg: 240},
		{BinID: "a", LocationClass: "commercial"},
	}
	p := BuildProfile(group)
	if p.LocationClass != "residential" {
		t.Errorf("LocationClass = %q, want residential", p.LocationClass)
	}
	if p.LocationLabel != "Main St 4" {
		t.Errorf("LocationLabel = %q", p.LocationLabel)
	}
	if p.RatedCapacityKg != 240 {
		t.Errorf("RatedCapacityKg = %v, want 240", p.RatedCapacityKg)
	}
}

func TestBuildProfile_EmptyGroup(t *testing.T) {
	p := BuildProfile(nil)
	if p.LocationClass != DefaultLocationClass || p.RatedCapacityKg != DefaultRatedCapacityKg {
		t.Errorf("empty group profile = %+v, want defaults", p)
	}
}

func TestPurity_Default(t *testing.T) {
	if got := (Event{}).Purity(); got != DefaultPurityScore {
		t.Errorf("Purity() = %v, want %v", got, DefaultPurityScore)
	}
	if got := (Event{PurityScore: 0.5}).Purity(); got != 0.5 {
		t.Errorf("Purity() = %v, want 0.5", got)
	}
}

func TestSortByTime(t *testing.T) {
	group := []Event{
		{ID: "e2", Timestamp: ts(12, 0)},
		{ID: "e1", Timestamp: ts(9, 0)},
		{ID: "e3", Timestamp: ts(15, 0)},
	}
	sorted := SortByTime(group)
	if sorted[0].ID != "e1" || sorted[1].ID != "e2" || sorted[2].ID != "e3" {
		t.Errorf("sorted order = %v,%v,%v", sorted[0].ID, sorted[1].ID, sorted[2].ID)
	}
	// Input untouched.
	if group[0].ID != "e2" {
		t.Errorf("input mutated: %v", group[0].ID)
	}
}
