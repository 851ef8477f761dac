// Package mirror derives a conservative second observation set from a
// primary one by a bounded random reduction. The mirror series is a
// lower-bound planning range, not a reproducible audit record.
package mirror

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mokoia/spawatch/internal/models"
)

// Rand is the source of uniform draws in [0, 1). Injectable so tests can
// pin the reduction factor exactly.
type Rand interface {
	Float64() float64
}

// Projector reduces each observation's booked count by a factor drawn
// uniformly from [lo, hi] per slot, independent across slots and runs.
type Projector struct {
	lo, hi float64
	rand   Rand
}

// New validates the reduction band and builds a projector. A nil src uses
// an unseeded math/rand source.
func New(lo, hi float64, src Rand) (*Projector, error) {
	if lo < 0 || hi > 1 || lo > hi {
		return nil, fmt.Errorf("reduction band [%v, %v] invalid: want 0 ≤ lo ≤ hi ≤ 1", lo, hi)
	}
	if src == nil {
		src = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Projector{lo: lo, hi: hi, rand: src}, nil
}

// NewDefault builds a projector with the stock [0.90, 0.95] band.
func NewDefault() *Projector {
	p, err := New(0.90, 0.95, nil)
	if err != nil {
		panic(err)
	}
	return p
}

// Project derives the mirror for one observation:
// clamp(round(booked × factor), 0, capacity) with factor ∈ [lo, hi].
func (p *Projector) Project(obs models.SlotObservation) models.MirrorObservation {
	factor := p.lo + p.rand.Float64()*(p.hi-p.lo)
	reduced := int(math.Round(float64(obs.SpasBooked) * factor))
	if reduced < 0 {
		reduced = 0
	}
	if reduced > obs.Capacity {
		reduced = obs.Capacity
	}
	return models.MirrorObservation{
		SourceSlot:      obs.Slot,
		SpasBooked:      reduced,
		Capacity:        obs.Capacity,
		ReductionFactor: factor,
	}
}
