package models

import (
	"testing"
	"time"
)

var testDate = time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC)

func TestParseHorizon(t *testing.T) {
	for _, h := range AllHorizons {
		parsed, err := ParseHorizon(string(h))
		if err != nil {
			t.Errorf("ParseHorizon(%q) failed: %v", h, err)
		}
		if parsed != h {
			t.Errorf("ParseHorizon(%q) = %q", h, parsed)
		}
	}

	if _, err := ParseHorizon("Fortnight"); err == nil {
		t.Error("unknown label should not parse")
	}
}

func TestHorizonWindow(t *testing.T) {
	tests := []struct {
		horizon Horizon
		days    int
	}{
		{SameDay, 1},
		{SevenDays, 7},
		{ThirtyDays, 30},
		{SixtyDays, 60},
		{NinetyDays, 90},
	}

	for _, tt := range tests {
		window := tt.horizon.Window(testDate)
		if len(window) != tt.days {
			t.Errorf("%s: expected %d dates, got %d", tt.horizon, tt.days, len(window))
			continue
		}
		if !window[0].Equal(testDate) {
			t.Errorf("%s: window must start today, got %v", tt.horizon, window[0])
		}
		last := testDate.AddDate(0, 0, tt.days-1)
		if !window[len(window)-1].Equal(last) {
			t.Errorf("%s: window must end at today+%d, got %v", tt.horizon, tt.days-1, window[len(window)-1])
		}
	}
}

func TestHorizonWindow_TruncatesTimeOfDay(t *testing.T) {
	noon := time.Date(2026, time.September, 10, 12, 37, 0, 0, time.UTC)
	window := SameDay.Window(noon)
	if !window[0].Equal(testDate) {
		t.Errorf("window date should be midnight, got %v", window[0])
	}
}

func TestTimeSlot(t *testing.T) {
	slot := NewTimeSlot(time.Date(2026, time.September, 10, 14, 55, 0, 0, time.UTC), 15, ThirtyDays)

	if got := slot.Key(); got != "2026-09-10/15" {
		t.Errorf("Key() = %q", got)
	}
	if got := slot.Label(); got != "15:00–16:00" {
		t.Errorf("Label() = %q", got)
	}
	if err := slot.Validate(); err != nil {
		t.Errorf("valid slot rejected: %v", err)
	}

	bad := NewTimeSlot(testDate, 24, SameDay)
	if err := bad.Validate(); err == nil {
		t.Error("hour 24 should be rejected")
	}
	if err := (TimeSlot{Date: testDate, HourOfDay: 10, Horizon: "Weekly"}).Validate(); err == nil {
		t.Error("unknown horizon should be rejected")
	}
}

func TestSlotObservationValidate(t *testing.T) {
	slot := NewTimeSlot(testDate, 15, SameDay)
	fetched := testDate.Add(8 * time.Hour)

	good := SlotObservation{Slot: slot, SpasBooked: 6, Capacity: 9, FetchedAt: fetched}
	if err := good.Validate(); err != nil {
		t.Errorf("valid observation rejected: %v", err)
	}
	if good.Available() != 3 {
		t.Errorf("Available() = %d", good.Available())
	}

	tests := []struct {
		name string
		obs  SlotObservation
	}{
		{"negative booked", SlotObservation{Slot: slot, SpasBooked: -1, Capacity: 9, FetchedAt: fetched}},
		{"booked above capacity", SlotObservation{Slot: slot, SpasBooked: 10, Capacity: 9, FetchedAt: fetched}},
		{"zero capacity", SlotObservation{Slot: slot, SpasBooked: 0, Capacity: 0, FetchedAt: fetched}},
		{"zero fetch time", SlotObservation{Slot: slot, SpasBooked: 6, Capacity: 9}},
	}
	for _, tt := range tests {
		if err := tt.obs.Validate(); err == nil {
			t.Errorf("%s: should be rejected", tt.name)
		}
	}
}

func TestAnomalyFlagString(t *testing.T) {
	slot := NewTimeSlot(testDate, 11, SevenDays)

	plain := AnomalyFlag{Slot: slot, Reason: AnomalyMissing}
	if got := plain.String(); got != "2026-09-10/11 SevenDays: missing" {
		t.Errorf("String() = %q", got)
	}

	detailed := AnomalyFlag{Slot: slot, Reason: AnomalyIndeterminate, Detail: "call us"}
	if got := detailed.String(); got != "2026-09-10/11 SevenDays: indeterminate (call us)" {
		t.Errorf("String() = %q", got)
	}
}

func TestMirrorObservationValidate(t *testing.T) {
	slot := NewTimeSlot(testDate, 15, SameDay)

	good := MirrorObservation{SourceSlot: slot, SpasBooked: 5, Capacity: 9, ReductionFactor: 0.92}
	if err := good.Validate(); err != nil {
		t.Errorf("valid mirror rejected: %v", err)
	}

	if err := (MirrorObservation{SourceSlot: slot, SpasBooked: -1, Capacity: 9, ReductionFactor: 0.92}).Validate(); err == nil {
		t.Error("negative count should be rejected")
	}
	if err := (MirrorObservation{SourceSlot: slot, SpasBooked: 10, Capacity: 9, ReductionFactor: 0.92}).Validate(); err == nil {
		t.Error("count above capacity should be rejected")
	}
	if err := (MirrorObservation{SourceSlot: slot, SpasBooked: 5, ReductionFactor: 0.92}).Validate(); err == nil {
		t.Error("missing capacity should be rejected")
	}
	if err := (MirrorObservation{SourceSlot: slot, SpasBooked: 5, Capacity: 9, ReductionFactor: 1.2}).Validate(); err == nil {
		t.Error("factor above 1 should be rejected")
	}
}

func TestBundleHistoricalRecords(t *testing.T) {
	slot := NewTimeSlot(testDate, 15, SameDay)
	runAt := testDate.Add(8 * time.Hour)
	b := Bundle{
		RunID:        "run-1",
		RunTimestamp: runAt,
		Horizon:      SameDay,
		Date:         testDate,
		Observations: []SlotObservation{
			{Slot: slot, SpasBooked: 6, Capacity: 9, FetchedAt: runAt},
		},
		Revenues: []RevenueEstimate{
			{Slot: slot, SegmentBreakdown: map[string]float64{"couples": 3.6}, TotalRevenue: 1224},
		},
	}

	records := b.HistoricalRecords()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.RunID != "run-1" || !r.RunTimestamp.Equal(runAt) {
		t.Errorf("record lost its run identity: %+v", r)
	}
	if r.Revenue.TotalRevenue != 1224 {
		t.Errorf("record paired with wrong revenue: %v", r.Revenue.TotalRevenue)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("projected record invalid: %v", err)
	}
}

func TestRunReportAggregation(t *testing.T) {
	report := RunReport{
		RunID:     "run-1",
		StartedAt: testDate,
		Duration:  time.Minute,
		Units: []UnitOutcome{
			{Horizon: SameDay, Observations: 14},
			{Horizon: SevenDays, Observations: 10, Anomalies: 4},
			{Horizon: SevenDays, Anomalies: 14, ErrText: "extraction failed"},
		},
	}

	if got := report.TotalObservations(); got != 24 {
		t.Errorf("TotalObservations() = %d", got)
	}
	if got := report.TotalAnomalies(); got != 18 {
		t.Errorf("TotalAnomalies() = %d", got)
	}
	if len(report.Failures()) != 1 {
		t.Errorf("Failures() = %v", report.Failures())
	}
	if report.Succeeded() {
		t.Error("a report with failures must not report success")
	}
}
