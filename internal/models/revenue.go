package models

import (
	"errors"
	"sort"
)

// RevenueEstimate is the deterministic revenue projection for one slot,
// derived from (spas booked, hour of day). It is never persisted apart from
// the observation it was computed for.
type RevenueEstimate struct {
	Slot TimeSlot `json:"slot"`
	// SegmentBreakdown maps segment name to the fractional number of
	// bookings attributed to it. Attributions are exact, not rounded.
	SegmentBreakdown map[string]float64 `json:"segment_breakdown"`
	TotalRevenue     float64            `json:"total_revenue"`
}

// Segments returns the breakdown's segment names in stable order.
func (r RevenueEstimate) Segments() []string {
	names := make([]string, 0, len(r.SegmentBreakdown))
	for name := range r.SegmentBreakdown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the estimate is internally consistent.
func (r RevenueEstimate) Validate() error {
	if err := r.Slot.Validate(); err != nil {
		return err
	}
	if len(r.SegmentBreakdown) == 0 {
		return errors.New("revenue estimate must attribute at least one segment")
	}
	if r.TotalRevenue < 0 {
		return errors.New("revenue estimate must not be negative")
	}
	return nil
}
