// Package normalize maps raw extractor output into clamped, typed
// observations. A slot that cannot be read honestly becomes an anomaly
// flag: downstream components treat a missing observation as unknown,
// never as zero occupancy.
package normalize

import (
	"fmt"
	"time"

	"github.com/mokoia/spawatch/internal/extractor"
	"github.com/mokoia/spawatch/internal/models"
	"github.com/mokoia/spawatch/internal/season"
)

// Normalizer applies the capacity model's bounds to raw counts.
type Normalizer struct {
	capacity int
}

// New builds a normalizer for the configured per-slot capacity.
func New(capacity int) *Normalizer {
	return &Normalizer{capacity: capacity}
}

// Slot normalizes one raw reading. A nil raw (the extractor saw nothing for
// this hour) or an indeterminate one yields an AnomalyFlag; any numeric
// count is clamped into [0, capacity], not rejected.
func (n *Normalizer) Slot(raw *extractor.RawSlot, slot models.TimeSlot, fetchedAt time.Time) (*models.SlotObservation, *models.AnomalyFlag) {
	if raw == nil {
		return nil, &models.AnomalyFlag{Slot: slot, Reason: models.AnomalyMissing}
	}
	if raw.Indeterminate {
		return nil, &models.AnomalyFlag{Slot: slot, Reason: models.AnomalyIndeterminate, Detail: raw.Text}
	}

	booked := raw.Booked
	if booked < 0 {
		booked = 0
	}
	if booked > n.capacity {
		booked = n.capacity
	}

	return &models.SlotObservation{
		Slot:       slot,
		SpasBooked: booked,
		Capacity:   n.capacity,
		FetchedAt:  fetchedAt,
	}, nil
}

// Fetch normalizes a whole fetch against the date's operating window. Every
// hour the window expects is accounted for exactly once: as an observation
// or as an anomaly. Raw slots outside the window are dropped; when the
// widget renders the same hour twice the first reading wins.
func (n *Normalizer) Fetch(raw []extractor.RawSlot, date time.Time, horizon models.Horizon, window season.Window, fetchedAt time.Time) ([]models.SlotObservation, []models.AnomalyFlag) {
	byHour := make(map[int]*extractor.RawSlot, len(raw))
	for i := range raw {
		r := &raw[i]
		if _, seen := byHour[r.HourOfDay]; !seen {
			byHour[r.HourOfDay] = r
		}
	}

	var observations []models.SlotObservation
	var anomalies []models.AnomalyFlag
	for _, hour := range window.Hours() {
		slot := models.NewTimeSlot(date, hour, horizon)
		obs, anomaly := n.Slot(byHour[hour], slot, fetchedAt)
		if anomaly != nil {
			anomalies = append(anomalies, *anomaly)
			continue
		}
		observations = append(observations, *obs)
	}
	return observations, anomalies
}

// FailedFetch flags the date's entire slot range as unknown after a
// terminal extraction failure, so the loss stays observable downstream.
func (n *Normalizer) FailedFetch(date time.Time, horizon models.Horizon, window season.Window, cause error) []models.AnomalyFlag {
	anomalies := make([]models.AnomalyFlag, 0, window.SlotCount)
	for _, hour := range window.Hours() {
		anomalies = append(anomalies, models.AnomalyFlag{
			Slot:   models.NewTimeSlot(date, hour, horizon),
			Reason: models.AnomalyFetchFailed,
			Detail: fmt.Sprint(cause),
		})
	}
	return anomalies
}
