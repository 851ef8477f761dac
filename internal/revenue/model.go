// Package revenue converts an occupancy count into a deterministic,
// time-of-day-sensitive revenue estimate using a fixed guest-segment mix.
package revenue

import (
	"fmt"
	"math"

	"github.com/mokoia/spawatch/internal/models"
)

// Segment is one guest type in the mix: its price per booking, average
// party size, and share of the market at the hours the table applies.
type Segment struct {
	Name      string
	Price     float64
	AvgGuests float64
	Share     float64
}

// Model holds the venue's capacity constants and the pre-/post-cutover
// segment tables. Values are fixed business constants supplied by
// configuration at startup, immutable for the run's lifetime.
type Model struct {
	capacity    int
	cutoverHour int
	daytime     []Segment
	evening     []Segment
}

const shareTolerance = 1e-9

// New validates and builds a model. Invalid constants are a startup
// failure: no estimate may be computed from a broken table.
func New(capacity, cutoverHour int, daytime, evening []Segment) (*Model, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if cutoverHour < 0 || cutoverHour > 24 {
		return nil, fmt.Errorf("cutover hour %d out of range [0, 24]", cutoverHour)
	}
	for _, table := range []struct {
		name     string
		segments []Segment
	}{{"daytime", daytime}, {"evening", evening}} {
		if len(table.segments) == 0 {
			return nil, fmt.Errorf("%s segment table must not be empty", table.name)
		}
		total := 0.0
		for _, seg := range table.segments {
			if seg.Name == "" {
				return nil, fmt.Errorf("%s segment table contains an unnamed segment", table.name)
			}
			if seg.Price <= 0 {
				return nil, fmt.Errorf("segment %q price must be positive, got %v", seg.Name, seg.Price)
			}
			if seg.Share <= 0 || seg.Share > 1 {
				return nil, fmt.Errorf("segment %q share %v out of range (0, 1]", seg.Name, seg.Share)
			}
			total += seg.Share
		}
		if math.Abs(total-1.0) > shareTolerance {
			return nil, fmt.Errorf("%s segment shares sum to %v, want 1.0", table.name, total)
		}
	}
	return &Model{
		capacity:    capacity,
		cutoverHour: cutoverHour,
		daytime:     daytime,
		evening:     evening,
	}, nil
}

// NewDefault builds the stock 9-spa model: couples $175/60%, groups
// $260/20%, families $235/20% before 18:00; after the cutover families do
// not book and the evening table is couples 75% / groups 25%.
func NewDefault() *Model {
	m, err := New(9, 18,
		[]Segment{
			{Name: "couples", Price: 175, AvgGuests: 2, Share: 0.60},
			{Name: "groups", Price: 260, AvgGuests: 3.5, Share: 0.20},
			{Name: "families", Price: 235, AvgGuests: 4, Share: 0.20},
		},
		[]Segment{
			{Name: "couples", Price: 175, AvgGuests: 2, Share: 0.75},
			{Name: "groups", Price: 260, AvgGuests: 3.5, Share: 0.25},
		},
	)
	if err != nil {
		panic(err) // stock constants are known-valid
	}
	return m
}

// Capacity returns the fixed maximum number of spas per slot.
func (m *Model) Capacity() int {
	return m.capacity
}

// CutoverHour returns the hour at which the evening segment table takes over.
func (m *Model) CutoverHour() int {
	return m.cutoverHour
}

// mixFor selects the active segment table for an hour. The evening table has
// no families entry at all; excluded segments are absent, not zero-weighted.
func (m *Model) mixFor(hourOfDay int) []Segment {
	if hourOfDay < m.cutoverHour {
		return m.daytime
	}
	return m.evening
}

// Estimate computes the revenue projection for one slot. The caller
// guarantees 0 ≤ spasBooked ≤ Capacity via normalization; the function is
// total over that domain and performs no rounding.
func (m *Model) Estimate(slot models.TimeSlot, spasBooked int) models.RevenueEstimate {
	mix := m.mixFor(slot.HourOfDay)

	breakdown := make(map[string]float64, len(mix))
	total := 0.0
	for _, seg := range mix {
		attributed := float64(spasBooked) * seg.Share
		breakdown[seg.Name] = attributed
		total += attributed * seg.Price
	}

	return models.RevenueEstimate{
		Slot:             slot,
		SegmentBreakdown: breakdown,
		TotalRevenue:     total,
	}
}
