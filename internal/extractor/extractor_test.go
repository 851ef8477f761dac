package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeSource scripts a deterministic sequence of fetch outcomes.
type fakeSource struct {
	outcomes []error // nil = success
	slots    []RawSlot
	calls    int
	shots    int
}

func (f *fakeSource) FetchRawSlots(ctx context.Context, date time.Time) ([]RawSlot, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	if err := f.outcomes[idx]; err != nil {
		return nil, err
	}
	return f.slots, nil
}

func (f *fakeSource) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	f.shots++
	return []byte("png-bytes"), nil
}

func testConfig(diagDir string) Config {
	return Config{
		MaxAttempts:    3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
		RequestsPerSec: 10000,
		DiagnosticsDir: diagDir,
	}
}

var testDate = time.Date(2026, time.September, 5, 0, 0, 0, 0, time.UTC)

func TestFetch_SucceedsFirstAttempt(t *testing.T) {
	src := &fakeSource{
		outcomes: []error{nil},
		slots:    []RawSlot{{HourOfDay: 10, Booked: 3}},
	}
	e := New(src, testConfig(""))

	slots, attempts, err := e.Fetch(context.Background(), testDate, "SameDay")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if len(slots) != 1 || slots[0].Booked != 3 {
		t.Errorf("unexpected slots: %+v", slots)
	}
}

func TestFetch_RecoversFromTransientFailures(t *testing.T) {
	src := &fakeSource{
		outcomes: []error{
			&TransientError{Kind: KindTimeout, Err: errors.New("render timeout")},
			&TransientError{Kind: KindEmptyDOM, Err: errors.New("empty page")},
			nil,
		},
		slots: []RawSlot{{HourOfDay: 12, Booked: 5}},
	}
	e := New(src, testConfig(""))

	slots, attempts, err := e.Fetch(context.Background(), testDate, "SevenDays")
	if err != nil {
		t.Fatalf("Fetch should recover within the ceiling: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(slots) != 1 {
		t.Errorf("expected 1 slot, got %d", len(slots))
	}
}

func TestFetch_TerminalAfterRetryCeiling(t *testing.T) {
	diagDir := t.TempDir()
	src := &fakeSource{
		outcomes: []error{&TransientError{Kind: KindTimeout, Err: errors.New("stuck")}},
	}
	e := New(src, testConfig(diagDir))

	_, attempts, err := e.Fetch(context.Background(), testDate, "ThirtyDays")
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if attempts != 3 {
		t.Errorf("expected retry ceiling of 3 attempts, got %d", attempts)
	}

	var terminal *TerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected *TerminalError, got %T", err)
	}
	if terminal.Attempts != 3 || terminal.LastKind != KindTimeout {
		t.Errorf("unexpected terminal error: %+v", terminal)
	}
	if terminal.Horizon != "ThirtyDays" {
		t.Errorf("expected horizon ThirtyDays, got %s", terminal.Horizon)
	}
}

func TestFetch_ParseErrorNotRetried(t *testing.T) {
	src := &fakeSource{
		outcomes: []error{errors.New("widget payload changed shape")},
	}
	e := New(src, testConfig(t.TempDir()))

	_, attempts, err := e.Fetch(context.Background(), testDate, "SameDay")
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if attempts != 1 {
		t.Errorf("unrecoverable parse error must not be retried, got %d attempts", attempts)
	}

	var terminal *TerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected *TerminalError, got %T", err)
	}
	if terminal.LastKind != KindParse {
		t.Errorf("expected last kind %q, got %q", KindParse, terminal.LastKind)
	}
}

func TestFetch_EmptyRenderIsTransient(t *testing.T) {
	src := &fakeSource{
		outcomes: []error{nil}, // fetch "succeeds" but yields no slots
		slots:    nil,
	}
	e := New(src, testConfig(t.TempDir()))

	_, attempts, err := e.Fetch(context.Background(), testDate, "SameDay")
	if err == nil {
		t.Fatal("expected terminal error for persistently empty render")
	}
	if attempts != 3 {
		t.Errorf("empty render should be retried to the ceiling, got %d attempts", attempts)
	}
}

func TestFetch_WritesDiagnosticsBeforeReporting(t *testing.T) {
	diagDir := t.TempDir()
	src := &fakeSource{
		outcomes: []error{&TransientError{Kind: KindNavigation, Err: errors.New("net::ERR_CONNECTION_RESET")}},
	}
	e := New(src, testConfig(diagDir))

	_, _, err := e.Fetch(context.Background(), testDate, "NinetyDays")
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if src.shots != 1 {
		t.Errorf("expected 1 screenshot capture, got %d", src.shots)
	}

	entries, readErr := os.ReadDir(diagDir)
	if readErr != nil || len(entries) != 1 {
		t.Fatalf("expected 1 diagnostics dir, got %d (err %v)", len(entries), readErr)
	}
	artifactDir := filepath.Join(diagDir, entries[0].Name())

	shot, readErr := os.ReadFile(filepath.Join(artifactDir, "screenshot.png"))
	if readErr != nil {
		t.Fatalf("screenshot artifact missing: %v", readErr)
	}
	if string(shot) != "png-bytes" {
		t.Error("screenshot content mismatch")
	}

	data, readErr := os.ReadFile(filepath.Join(artifactDir, "error.json"))
	if readErr != nil {
		t.Fatalf("error record missing: %v", readErr)
	}
	var record struct {
		Date         string `json:"date"`
		HorizonLabel string `json:"horizon_label"`
		AttemptCount int    `json:"attempt_count"`
		LastErrKind  string `json:"last_error_kind"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("error record not valid JSON: %v", err)
	}
	if record.Date != "2026-09-05" || record.HorizonLabel != "NinetyDays" {
		t.Errorf("unexpected record identity: %+v", record)
	}
	if record.AttemptCount != 3 || record.LastErrKind != KindNavigation {
		t.Errorf("unexpected record detail: %+v", record)
	}
}

func TestFetch_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{
		outcomes: []error{&TransientError{Kind: KindTimeout, Err: errors.New("slow")}},
	}
	e := New(src, testConfig(""))

	_, _, err := e.Fetch(ctx, testDate, "SameDay")
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}

func TestParseSlotText(t *testing.T) {
	cases := []struct {
		text          string
		booked        int
		indeterminate bool
	}{
		{"15:00 Fully Booked", 9, false},
		{"16:00 SOLD OUT", 9, false},
		{"12:00 4 available", 5, false},
		{"12:00 12 available", -3, false}, // over-capacity raw; normalizer clamps
		{"18:00 7 booked", 7, false},
		{"19:00 call us", 0, true},
		{"", 0, true},
	}

	for _, tc := range cases {
		booked, indeterminate := parseSlotText(tc.text, 9)
		if booked != tc.booked || indeterminate != tc.indeterminate {
			t.Errorf("parseSlotText(%q) = (%d, %v), want (%d, %v)",
				tc.text, booked, indeterminate, tc.booked, tc.indeterminate)
		}
	}
}
