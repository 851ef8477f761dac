package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mokoia/spawatch/internal/models"
)

var csvHeader = []string{
	"Run Timestamp", "Booking Date", "Time Slot", "Hour",
	"Spas Booked", "Capacity", "Spas Available",
	"Revenue", "Segment Breakdown", "Horizon", "Status",
}

// CSVSink writes per-horizon snapshot and mirror files (overwritten each
// run) plus an append-only historical file under a single export dir.
type CSVSink struct {
	dir string
}

// NewCSV creates the export directory if needed.
func NewCSV(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	return &CSVSink{dir: dir}, nil
}

func (c *CSVSink) WriteSnapshot(horizon models.Horizon, bundles []models.Bundle) error {
	return c.overwrite(filepath.Join(c.dir, string(horizon)+".csv"), bundles, false)
}

func (c *CSVSink) WriteMirror(horizon models.Horizon, bundles []models.Bundle) error {
	return c.overwrite(filepath.Join(c.dir, string(horizon)+"_Mirror.csv"), bundles, true)
}

// overwrite replaces the file with this run's rows. Written to a temp file
// first so a crash mid-write never leaves a truncated snapshot behind.
func (c *CSVSink) overwrite(path string, bundles []models.Bundle, mirror bool) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(csvHeader)
	for _, b := range bundles {
		if writeErr != nil {
			break
		}
		if mirror {
			writeErr = c.writeMirrorRows(w, b)
		} else {
			writeErr = c.writeSnapshotRows(w, b)
		}
	}
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, writeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (c *CSVSink) writeSnapshotRows(w *csv.Writer, b models.Bundle) error {
	for i, obs := range b.Observations {
		row := recordRow(b.RunTimestamp, obs.Slot, obs.SpasBooked, obs.Capacity, b.Revenues[i], "observed")
		if err := w.Write(row); err != nil {
			return err
		}
	}
	for _, anomaly := range b.Anomalies {
		row := []string{
			b.RunTimestamp.Format(time.RFC3339),
			anomaly.Slot.Date.Format("2006-01-02"),
			anomaly.Slot.Label(),
			strconv.Itoa(anomaly.Slot.HourOfDay),
			"", "", "", "", "",
			string(anomaly.Slot.Horizon),
			"unknown:" + anomaly.Reason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (c *CSVSink) writeMirrorRows(w *csv.Writer, b models.Bundle) error {
	for _, m := range b.Mirrors {
		row := recordRow(b.RunTimestamp, m.Observation.SourceSlot, m.Observation.SpasBooked, m.Observation.Capacity, m.Revenue, "mirror")
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// AppendHistorical adds rows to historical.csv, creating it with a header
// on first use. Rows are never rewritten.
func (c *CSVSink) AppendHistorical(records []models.HistoricalRecord) error {
	path := filepath.Join(c.dir, "historical.csv")
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open historical file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	for _, r := range records {
		row := recordRow(r.RunTimestamp, r.Observation.Slot, r.Observation.SpasBooked, r.Observation.Capacity, r.Revenue, "observed")
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (c *CSVSink) Close() error { return nil }

func recordRow(runAt time.Time, slot models.TimeSlot, booked, capacity int, rev models.RevenueEstimate, status string) []string {
	return []string{
		runAt.Format(time.RFC3339),
		slot.Date.Format("2006-01-02"),
		slot.Label(),
		strconv.Itoa(slot.HourOfDay),
		strconv.Itoa(booked),
		strconv.Itoa(capacity),
		strconv.Itoa(capacity - booked),
		strconv.FormatFloat(rev.TotalRevenue, 'f', 2, 64),
		formatBreakdown(rev.SegmentBreakdown),
		string(slot.Horizon),
		status,
	}
}
