// Package events defines the sensor event model for waste-collection bins
// and the window aggregation helpers that partition an event batch by bin
// and derive a per-bin profile for one analysis pass.
package events

import (
	"sort"
	"time"
)

// Default profile values applied when a bin's metadata is absent from the
// event stream.
const (
	DefaultLocationClass   = "unknown"
	DefaultRatedCapacityKg = 100.0
	DefaultPurityScore     = 0.85
)

// Event is one timestamped sensor reading from a bin. Events are created at
// the ingestion boundary and are read-only inside the engine. The bin fields
// (location class, capacity, label) are denormalized onto the event by the
// store's join so a batch carries everything one analysis pass needs.
type Event struct {
	ID        string    `json:"id"`
	BinID     string    `json:"binId"`
	Timestamp time.Time `json:"timestamp"`

	// WeightKg is the deposited weight in kilograms, >= 0.
	WeightKg float64 `json:"weightKg"`

	// FillLevelPct is the reported fill level, 0-100.
	FillLevelPct float64 `json:"fillLevelPct"`

	// PurityScore is the material purity in [0,1]. Zero or negative means
	// the sensor did not report one; use Purity() to read it with the
	// default applied.
	PurityScore float64 `json:"purityScore,omitempty"`

	// MaterialCounts maps material category name to a non-negative count
	// of items detected in the deposit.
	MaterialCounts map[string]int `json:"materialCounts,omitempty"`

	// UserID identifies the depositing user when known.
	UserID string `json:"userId,omitempty"`

	LocationClass   string  `json:"locationClass,omitempty"`
	LocationLabel   string  `json:"locationLabel,omitempty"`
	RatedCapacityKg float64 `json:"ratedCapacityKg,omitempty"`
}

// Purity returns the purity score, substituting the default when the
// reading is absent.
func (e Event) Purity() float64 {
	if e.PurityScore > 0 {
		return e.PurityScore
	}
	return DefaultPurityScore
}

// BinProfile is the per-bin context derived for a single analysis call.
// It is rebuilt from the batch every time and never persisted.
type BinProfile struct {
	BinID           string
	LocationClass   string
	LocationLabel   string
	RatedCapacityKg float64
}

// GroupByBin partitions a batch of events by bin id, preserving the order
// events were received in. Every event lands in exactly one group.
func GroupByBin(batch []Event) map[string][]Event {
	groups := make(map[string][]Event)
	for _, e := range batch {
		groups[e.BinID] = append(groups[e.BinID], e)
	}
	return groups
}

// BuildProfile derives a BinProfile from a bin's event group, reading bin
// metadata from the first event and falling back to documented defaults for
// absent fields. An empty group yields a profile with defaults only.
func BuildProfile(group []Event) BinProfile {
	p := BinProfile{
		LocationClass:   DefaultLocationClass,
		RatedCapacityKg: DefaultRatedCapacityKg,
	}
	if len(group) == 0 {
		return p
	}

	first := group[0]
	p.BinID = first.BinID
	p.LocationLabel = first.LocationLabel
	if first.LocationClass != "" {
		p.LocationClass = first.LocationClass
	}
	if first.RatedCapacityKg > 0 {
		p.RatedCapacityKg = first.RatedCapacityKg
	}
	return p
}

// SortByTime returns a copy of group ordered by ascending timestamp.
// Ties keep their original relative order.
func SortByTime(group []Event) []Event {
	sorted := make([]Event, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
