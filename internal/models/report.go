package models

import (
	"fmt"
	"time"
)

// UnitOutcome summarizes one (date, horizon) unit of work. Err is non-nil
// only for terminal extraction failures; anomalies inside an otherwise
// successful fetch are counted, not errored.
type UnitOutcome struct {
	Horizon      Horizon   `json:"horizon"`
	Date         time.Time `json:"date"`
	Observations int       `json:"observations"`
	Anomalies    int       `json:"anomalies"`
	Attempts     int       `json:"attempts"`
	Err          error     `json:"-"`
	ErrText      string    `json:"error,omitempty"`
}

// RunReport aggregates a whole run: successes, anomalies, and terminal
// failures, so the caller can alert without losing partial results.
type RunReport struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Units     []UnitOutcome `json:"units"`
}

// TotalObservations counts normalized observations across all units.
func (r RunReport) TotalObservations() int {
	n := 0
	for _, u := range r.Units {
		n += u.Observations
	}
	return n
}

// TotalAnomalies counts anomalous slots across all units.
func (r RunReport) TotalAnomalies() int {
	n := 0
	for _, u := range r.Units {
		n += u.Anomalies
	}
	return n
}

// Failures returns the units that ended in a terminal extraction failure.
func (r RunReport) Failures() []UnitOutcome {
	var failed []UnitOutcome
	for _, u := range r.Units {
		if u.Err != nil || u.ErrText != "" {
			failed = append(failed, u)
		}
	}
	return failed
}

// Succeeded reports whether every unit completed without a terminal failure.
func (r RunReport) Succeeded() bool {
	return len(r.Failures()) == 0
}

// Summary renders a one-line digest for logs and alerts.
func (r RunReport) Summary() string {
	return fmt.Sprintf("run %s: %d units, %d observations, %d anomalies, %d failures in %v",
		r.RunID, len(r.Units), r.TotalObservations(), r.TotalAnomalies(), len(r.Failures()), r.Duration.Round(time.Millisecond))
}
