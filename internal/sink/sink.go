// Package sink delivers run output to external stores. The three record
// sets (snapshot, historical, mirror) are projections of the same
// observation stream; a sink only chooses retention: snapshots and mirrors
// are overwritten per run, the historical series is append-only.
package sink

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/mokoia/spawatch/internal/models"
)

// DataSink receives a run's output per horizon.
type DataSink interface {
	// WriteSnapshot replaces the horizon's prior snapshot with this run's
	// bundles (one per fetched date), anomalies included.
	WriteSnapshot(horizon models.Horizon, bundles []models.Bundle) error

	// WriteMirror replaces the horizon's mirror record set, kept separate
	// from the primary snapshot.
	WriteMirror(horizon models.Horizon, bundles []models.Bundle) error

	// AppendHistorical adds records to the append-only series. Existing
	// records are never updated or deleted.
	AppendHistorical(records []models.HistoricalRecord) error

	Close() error
}

// Multi fans every write out to all member sinks so each receives the
// identical bundles. All members are attempted; errors are joined.
type Multi struct {
	sinks []DataSink
}

// NewMulti builds a fan-out sink.
func NewMulti(sinks ...DataSink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) WriteSnapshot(horizon models.Horizon, bundles []models.Bundle) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteSnapshot(horizon, bundles); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) WriteMirror(horizon models.Horizon, bundles []models.Bundle) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteMirror(horizon, bundles); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) AppendHistorical(records []models.HistoricalRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.AppendHistorical(records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// formatBreakdown renders a segment breakdown as compact JSON with stable
// key order, suitable for a single CSV cell or TEXT column.
func formatBreakdown(breakdown map[string]float64) string {
	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		value, _ := json.Marshal(breakdown[name])
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return b.String()
}
