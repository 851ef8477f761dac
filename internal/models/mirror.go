package models

import (
	"errors"
	"fmt"
)

// MirrorObservation is a conservative projection derived from a primary
// observation by a bounded random reduction. It is a planning range, not a
// reproducible audit record: re-running produces a different, always-in-band
// series. SourceSlot is a back-reference for lookup, not ownership; Capacity
// is carried over from the source observation.
type MirrorObservation struct {
	SourceSlot      TimeSlot `json:"source_slot"`
	SpasBooked      int      `json:"spas_booked"`
	Capacity        int      `json:"capacity"`
	ReductionFactor float64  `json:"reduction_factor"`
}

// Validate checks the mirror stays within its source slot's bounds.
func (m MirrorObservation) Validate() error {
	if err := m.SourceSlot.Validate(); err != nil {
		return err
	}
	if m.Capacity <= 0 {
		return errors.New("mirror capacity must be positive")
	}
	if m.SpasBooked < 0 || m.SpasBooked > m.Capacity {
		return fmt.Errorf("mirror spas booked %d out of range [0, %d]", m.SpasBooked, m.Capacity)
	}
	if m.ReductionFactor < 0 || m.ReductionFactor > 1 {
		return fmt.Errorf("reduction factor %v out of range [0, 1]", m.ReductionFactor)
	}
	return nil
}

// MirrorRecord pairs a mirror observation with the revenue estimate
// recomputed from its reduced count.
type MirrorRecord struct {
	Observation MirrorObservation `json:"observation"`
	Revenue     RevenueEstimate   `json:"revenue"`
}
