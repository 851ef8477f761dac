package models

import (
	"errors"
	"fmt"
	"time"
)

// SlotObservation is one normalized occupancy reading for a slot. Produced
// exactly once per (date, hour, run) and never mutated afterwards; a
// correction is a new observation, not an edit.
type SlotObservation struct {
	Slot       TimeSlot  `json:"slot"`
	SpasBooked int       `json:"spas_booked"`
	Capacity   int       `json:"capacity"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Available returns the number of unbooked spas in the slot.
func (o SlotObservation) Available() int {
	return o.Capacity - o.SpasBooked
}

// Validate checks the capacity invariant: 0 ≤ SpasBooked ≤ Capacity.
func (o SlotObservation) Validate() error {
	if err := o.Slot.Validate(); err != nil {
		return err
	}
	if o.Capacity <= 0 {
		return errors.New("observation capacity must be positive")
	}
	if o.SpasBooked < 0 || o.SpasBooked > o.Capacity {
		return fmt.Errorf("spas booked %d out of range [0, %d]", o.SpasBooked, o.Capacity)
	}
	if o.FetchedAt.IsZero() {
		return errors.New("observation fetch time must not be zero")
	}
	return nil
}

// Anomaly reasons recorded when a slot cannot be observed. Downstream
// consumers must treat a flagged slot as unknown, never as zero occupancy.
const (
	AnomalyMissing       = "missing"
	AnomalyIndeterminate = "indeterminate"
	AnomalyFetchFailed   = "fetch_failed"
)

// AnomalyFlag marks a slot whose occupancy could not be observed.
type AnomalyFlag struct {
	Slot   TimeSlot `json:"slot"`
	Reason string   `json:"reason"`
	Detail string   `json:"detail,omitempty"`
}

func (a AnomalyFlag) String() string {
	if a.Detail != "" {
		return fmt.Sprintf("%s %s: %s (%s)", a.Slot.Key(), a.Slot.Horizon, a.Reason, a.Detail)
	}
	return fmt.Sprintf("%s %s: %s", a.Slot.Key(), a.Slot.Horizon, a.Reason)
}
