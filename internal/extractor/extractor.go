// Package extractor pulls per-slot occupancy out of the venue's JS-rendered
// booking calendar. It is the primary source of failure and nondeterminism
// in the system: every fetch runs a bounded retry state machine
// (Navigate → WaitForRender → Parse) and a terminal failure always leaves a
// diagnostic artifact behind before being reported upward.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/mokoia/spawatch/internal/logger"
	"github.com/mokoia/spawatch/internal/models"
)

// Error kinds recorded in diagnostics and carried by TerminalError.
const (
	KindNavigation = "navigation"
	KindTimeout    = "timeout"
	KindEmptyDOM   = "empty_dom"
	KindParse      = "parse"
)

// RawSlot is one visible time slot as rendered by the widget: either a
// parsed booked count or explicitly indeterminate (the widget showed a
// non-numeric state). Text keeps the raw widget fragment for diagnostics.
type RawSlot struct {
	HourOfDay     int
	Booked        int
	Indeterminate bool
	Text          string
}

// Source is the browser-automation capability the retry machine drives.
// Implementations must classify recoverable failures as *TransientError so
// the machine can distinguish them from unrecoverable parse errors.
type Source interface {
	// FetchRawSlots navigates to the calendar for one date, waits for the
	// widget to render, and returns one RawSlot per visible time slot.
	FetchRawSlots(ctx context.Context, date time.Time) ([]RawSlot, error)

	// CaptureScreenshot grabs the current render for postmortem use.
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

// TransientError marks a failure worth re-entering Navigate for: timeouts,
// stale elements, an empty DOM before render completes.
type TransientError struct {
	Kind string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s failure: %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError surfaces a fetch that exhausted its retry ceiling or hit an
// unrecoverable error. It carries everything the diagnostic record needs.
type TerminalError struct {
	Date     time.Time
	Horizon  models.Horizon
	Attempts int
	LastKind string
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("extraction failed for %s (%s) after %d attempts, last error %s: %v",
		e.Date.Format("2006-01-02"), e.Horizon, e.Attempts, e.LastKind, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Config bounds the retry machine and locates diagnostic output.
type Config struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	RequestsPerSec float64
	DiagnosticsDir string
}

// Extractor runs the per-(date, horizon) fetch state machine against a
// Source, pacing navigations so the booking site is never hammered.
type Extractor struct {
	source  Source
	limiter *rate.Limiter
	cfg     Config
}

// New builds an extractor. Zero config values fall back to safe defaults.
func New(source Source, cfg Config) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 2 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 0.5
	}
	return &Extractor{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		cfg:     cfg,
	}
}

// Fetch drives one (date, horizon) extraction to a terminal state. On
// success it returns the raw slots and the attempt count. On terminal
// failure it writes the diagnostic artifact first, then returns a
// *TerminalError; the caller marks the slot range unknown instead of
// crashing the run.
func (e *Extractor) Fetch(ctx context.Context, date time.Time, horizon models.Horizon) ([]RawSlot, int, error) {
	attempts := 0
	lastKind := KindNavigation
	var slots []RawSlot

	operation := func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempts++

		raw, err := e.source.FetchRawSlots(ctx, date)
		if err != nil {
			var transient *TransientError
			if errors.As(err, &transient) {
				lastKind = transient.Kind
				logger.Warn("Transient extraction failure for %s (%s), attempt %d/%d: %v",
					date.Format("2006-01-02"), horizon, attempts, e.cfg.MaxAttempts, err)
				return err
			}
			lastKind = KindParse
			return backoff.Permanent(err)
		}
		if len(raw) == 0 {
			lastKind = KindEmptyDOM
			err := &TransientError{Kind: KindEmptyDOM, Err: errors.New("no time slots in rendered page")}
			logger.Warn("Empty render for %s (%s), attempt %d/%d",
				date.Format("2006-01-02"), horizon, attempts, e.cfg.MaxAttempts)
			return err
		}

		slots = raw
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = e.cfg.BackoffInitial
	strategy.MaxInterval = e.cfg.BackoffMax
	strategy.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(strategy, uint64(e.cfg.MaxAttempts-1)), ctx))
	if err != nil {
		e.captureDiagnostics(date, horizon, attempts, lastKind, err)
		return nil, attempts, &TerminalError{
			Date:     date,
			Horizon:  horizon,
			Attempts: attempts,
			LastKind: lastKind,
			Err:      err,
		}
	}

	return slots, attempts, nil
}

// diagnosticRecord is the structured half of the postmortem artifact.
type diagnosticRecord struct {
	Date         string    `json:"date"`
	HorizonLabel string    `json:"horizon_label"`
	AttemptCount int       `json:"attempt_count"`
	LastErrKind  string    `json:"last_error_kind"`
	Error        string    `json:"error"`
	Timestamp    time.Time `json:"timestamp"`
}

// captureDiagnostics writes the screenshot and error record for a terminal
// failure. It must complete before the failure propagates, so it never
// returns early: each piece is written best-effort and logged on its own.
func (e *Extractor) captureDiagnostics(date time.Time, horizon models.Horizon, attempts int, lastKind string, cause error) {
	if e.cfg.DiagnosticsDir == "" {
		return
	}

	now := time.Now()
	dir := filepath.Join(e.cfg.DiagnosticsDir,
		fmt.Sprintf("%s_%s_%s", date.Format("2006-01-02"), horizon, now.Format("20060102_150405")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("Failed to create diagnostics dir %s: %v", dir, err)
		return
	}

	// A fresh, short-lived context: the fetch context may already be dead.
	shotCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shot, err := e.source.CaptureScreenshot(shotCtx); err != nil {
		logger.Warn("Diagnostic screenshot failed for %s (%s): %v", date.Format("2006-01-02"), horizon, err)
	} else if err := os.WriteFile(filepath.Join(dir, "screenshot.png"), shot, 0o644); err != nil {
		logger.Warn("Failed to write diagnostic screenshot: %v", err)
	}

	record := diagnosticRecord{
		Date:         date.Format("2006-01-02"),
		HorizonLabel: string(horizon),
		AttemptCount: attempts,
		LastErrKind:  lastKind,
		Error:        cause.Error(),
		Timestamp:    now,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		logger.Error("Failed to marshal diagnostic record: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "error.json"), data, 0o644); err != nil {
		logger.Error("Failed to write diagnostic record: %v", err)
		return
	}
	logger.Info("Diagnostics for %s (%s) saved to %s", date.Format("2006-01-02"), horizon, dir)
}
