package sink

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mokoia/spawatch/internal/models"
)

var runAt = time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)

func testBundle(runID string, booked int) models.Bundle {
	date := time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC)
	slot := models.NewTimeSlot(date, 15, models.ThirtyDays)
	obs := models.SlotObservation{Slot: slot, SpasBooked: booked, Capacity: 9, FetchedAt: runAt}
	rev := models.RevenueEstimate{
		Slot:             slot,
		SegmentBreakdown: map[string]float64{"couples": float64(booked) * 0.6, "groups": float64(booked) * 0.2},
		TotalRevenue:     float64(booked) * 204,
	}
	return models.Bundle{
		RunID:        runID,
		RunTimestamp: runAt,
		Horizon:      models.ThirtyDays,
		Date:         date,
		Observations: []models.SlotObservation{obs},
		Revenues:     []models.RevenueEstimate{rev},
		Anomalies: []models.AnomalyFlag{
			{Slot: models.NewTimeSlot(date, 16, models.ThirtyDays), Reason: models.AnomalyMissing},
		},
		Mirrors: []models.MirrorRecord{
			{
				Observation: models.MirrorObservation{SourceSlot: slot, SpasBooked: booked - 1, Capacity: 9, ReductionFactor: 0.92},
				Revenue:     models.RevenueEstimate{Slot: slot, TotalRevenue: float64(booked-1) * 204},
			},
		},
	}
}

func TestCSVSink_SnapshotOverwriteHistoricalAppend(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSV(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	first := testBundle("run-1", 6)
	second := testBundle("run-2", 4)

	for _, b := range []models.Bundle{first, second} {
		if err := s.WriteSnapshot(models.ThirtyDays, []models.Bundle{b}); err != nil {
			t.Fatal(err)
		}
		if err := s.AppendHistorical(b.HistoricalRecords()); err != nil {
			t.Fatal(err)
		}
	}

	// The snapshot reflects only the second run.
	snapshot := readCSV(t, filepath.Join(dir, "ThirtyDays.csv"))
	if len(snapshot) != 3 { // header + observation + anomaly
		t.Fatalf("expected 3 snapshot rows, got %d", len(snapshot))
	}
	if got := snapshot[1][4]; got != "4" {
		t.Errorf("snapshot should hold the second run's count, got %q", got)
	}

	// The historical series holds both runs.
	historical := readCSV(t, filepath.Join(dir, "historical.csv"))
	if len(historical) != 3 { // header + two records
		t.Fatalf("expected 3 historical rows, got %d", len(historical))
	}
	if historical[1][4] != "6" || historical[2][4] != "4" {
		t.Errorf("historical rows out of order: %v / %v", historical[1], historical[2])
	}
}

func TestCSVSink_AnomalyRowsCarryNoNumbers(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSV(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.WriteSnapshot(models.ThirtyDays, []models.Bundle{testBundle("run-1", 6)}); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(dir, "ThirtyDays.csv"))
	anomalyRow := rows[2]
	if anomalyRow[4] != "" || anomalyRow[7] != "" {
		t.Errorf("anomaly row must not fabricate counts or revenue: %v", anomalyRow)
	}
	if anomalyRow[10] != "unknown:missing" {
		t.Errorf("expected status unknown:missing, got %q", anomalyRow[10])
	}
}

func TestCSVSink_MirrorFileIsSeparate(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSV(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.WriteMirror(models.SevenDays, []models.Bundle{testBundle("run-1", 6)}); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(dir, "SevenDays_Mirror.csv"))
	if len(rows) != 2 {
		t.Fatalf("expected header plus one mirror row, got %d", len(rows))
	}
	if rows[1][4] != "5" || rows[1][10] != "mirror" {
		t.Errorf("unexpected mirror row: %v", rows[1])
	}
	if rows[1][5] != "9" || rows[1][6] != "4" {
		t.Errorf("mirror row should carry its own capacity and availability: %v", rows[1])
	}
	if _, err := os.Stat(filepath.Join(dir, "SevenDays.csv")); !os.IsNotExist(err) {
		t.Error("mirror write must not touch the primary snapshot file")
	}
}

func TestSQLiteSink_SnapshotOverwriteHistoricalAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spa.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	first := testBundle("run-1", 6)
	second := testBundle("run-2", 4)

	for _, b := range []models.Bundle{first, second} {
		if err := s.WriteSnapshot(models.ThirtyDays, []models.Bundle{b}); err != nil {
			t.Fatal(err)
		}
		if err := s.AppendHistorical(b.HistoricalRecords()); err != nil {
			t.Fatal(err)
		}
	}

	booked, err := s.SnapshotBooked(models.ThirtyDays)
	if err != nil {
		t.Fatal(err)
	}
	if len(booked) != 1 {
		t.Fatalf("expected 1 snapshot row after two runs, got %d", len(booked))
	}
	if booked["2026-09-10/15"] != 4 {
		t.Errorf("snapshot should hold the second run's count, got %v", booked)
	}

	count, err := s.HistoricalCount("2026-09-10", 15)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 historical records for the slot, got %d", count)
	}
}

func TestSQLiteSink_MirrorOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spa.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.WriteMirror(models.SameDay, []models.Bundle{testBundle("run-1", 6)}); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteMirror(models.SameDay, []models.Bundle{testBundle("run-2", 3)}); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM mirrors WHERE horizon = ?", string(models.SameDay)).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("mirror table should hold only the latest run, got %d rows", count)
	}
}

type failingSink struct{ err error }

func (f *failingSink) WriteSnapshot(models.Horizon, []models.Bundle) error { return f.err }
func (f *failingSink) WriteMirror(models.Horizon, []models.Bundle) error   { return f.err }
func (f *failingSink) AppendHistorical([]models.HistoricalRecord) error    { return f.err }
func (f *failingSink) Close() error                                        { return f.err }

func TestMulti_AttemptsAllSinksAndJoinsErrors(t *testing.T) {
	dir := t.TempDir()
	good, err := NewCSV(dir)
	if err != nil {
		t.Fatal(err)
	}
	bad := &failingSink{err: errors.New("disk full")}

	m := NewMulti(bad, good)
	writeErr := m.WriteSnapshot(models.SameDay, []models.Bundle{testBundle("run-1", 6)})
	if writeErr == nil {
		t.Fatal("expected the failing member's error to surface")
	}
	if !strings.Contains(writeErr.Error(), "disk full") {
		t.Errorf("joined error lost the cause: %v", writeErr)
	}

	// The healthy member still received the write.
	if _, err := os.Stat(filepath.Join(dir, "SameDay.csv")); err != nil {
		t.Errorf("healthy sink should have written despite the sibling failure: %v", err)
	}
}

func TestFormatBreakdown_StableOrder(t *testing.T) {
	got := formatBreakdown(map[string]float64{"groups": 1.4, "couples": 4.2, "families": 1.4})
	want := `{"couples":4.2,"families":1.4,"groups":1.4}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}
