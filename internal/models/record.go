package models

import (
	"errors"
	"time"
)

// HistoricalRecord is one append-only log entry: an observation, the revenue
// derived from it, and the run that produced both. Created once per run per
// slot, never updated or deleted. The full historical series is the
// concatenation of all runs' records.
type HistoricalRecord struct {
	Observation  SlotObservation `json:"observation"`
	Revenue      RevenueEstimate `json:"revenue"`
	RunID        string          `json:"run_id"`
	RunTimestamp time.Time       `json:"run_timestamp"`
}

// Validate checks that the record's parts are consistent.
func (h HistoricalRecord) Validate() error {
	if h.RunID == "" {
		return errors.New("historical record run ID must not be empty")
	}
	if h.RunTimestamp.IsZero() {
		return errors.New("historical record run timestamp must not be zero")
	}
	if err := h.Observation.Validate(); err != nil {
		return err
	}
	return h.Revenue.Validate()
}

// Bundle is everything one (date, horizon) unit of work produced. Revenues
// is parallel to Observations: every observation has exactly one estimate at
// the same index. Snapshot, historical, and mirror outputs are all
// projections of this single bundle, so sinks can never diverge in content,
// only in retention policy.
type Bundle struct {
	RunID        string            `json:"run_id"`
	RunTimestamp time.Time         `json:"run_timestamp"`
	Horizon      Horizon           `json:"horizon"`
	Date         time.Time         `json:"date"`
	Observations []SlotObservation `json:"observations"`
	Revenues     []RevenueEstimate `json:"revenues"`
	Anomalies    []AnomalyFlag     `json:"anomalies"`
	Mirrors      []MirrorRecord    `json:"mirrors"`
}

// HistoricalRecords projects the bundle into append-only log entries.
func (b Bundle) HistoricalRecords() []HistoricalRecord {
	records := make([]HistoricalRecord, 0, len(b.Observations))
	for i, obs := range b.Observations {
		records = append(records, HistoricalRecord{
			Observation:  obs,
			Revenue:      b.Revenues[i],
			RunID:        b.RunID,
			RunTimestamp: b.RunTimestamp,
		})
	}
	return records
}
