// Package scheduler orchestrates one pipeline run. It expands each forecast
// horizon into (date, horizon) units, drives every unit through
// fetch → normalize → estimate → mirror, and delivers the per-horizon
// bundles to the configured sinks. A unit's terminal failure is isolated:
// its slot range is flagged unknown and the run continues.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mokoia/spawatch/internal/extractor"
	"github.com/mokoia/spawatch/internal/logger"
	"github.com/mokoia/spawatch/internal/mirror"
	"github.com/mokoia/spawatch/internal/models"
	"github.com/mokoia/spawatch/internal/normalize"
	"github.com/mokoia/spawatch/internal/revenue"
	"github.com/mokoia/spawatch/internal/season"
	"github.com/mokoia/spawatch/internal/sink"
)

// Fetcher is the slice of the extractor the scheduler needs. It keeps the
// orchestration testable without a browser.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time, horizon models.Horizon) ([]extractor.RawSlot, int, error)
}

// Scheduler runs the full pipeline for a set of horizons.
type Scheduler struct {
	fetcher    Fetcher
	normalizer *normalize.Normalizer
	model      *revenue.Model
	projector  *mirror.Projector
	calendar   season.Calendar
	sink       sink.DataSink
	workers    int
}

// New builds a scheduler. workers bounds how many units fetch concurrently;
// anything below 1 means sequential.
func New(fetcher Fetcher, normalizer *normalize.Normalizer, model *revenue.Model, projector *mirror.Projector, calendar season.Calendar, dataSink sink.DataSink, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		fetcher:    fetcher,
		normalizer: normalizer,
		model:      model,
		projector:  projector,
		calendar:   calendar,
		sink:       dataSink,
		workers:    workers,
	}
}

// Run executes one complete pipeline pass anchored at today. Every horizon's
// snapshot, mirror, and historical records are written as soon as that
// horizon completes, so the projections stay in step even when the run
// stops early. Cancellation is honored between units, never inside one.
func (s *Scheduler) Run(ctx context.Context, horizons []models.Horizon, today time.Time) (*models.RunReport, error) {
	runID := uuid.New().String()
	startedAt := time.Now()
	report := &models.RunReport{RunID: runID, StartedAt: startedAt}

	logger.Info("Starting run %s for %d horizons", runID, len(horizons))

	var sinkErrs []error
	for _, horizon := range horizons {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(startedAt)
			return report, err
		}

		bundles, outcomes := s.runHorizon(ctx, runID, startedAt, horizon, today)
		report.Units = append(report.Units, outcomes...)

		if err := s.sink.WriteSnapshot(horizon, bundles); err != nil {
			logger.Error("Snapshot write failed for %s: %v", horizon, err)
			sinkErrs = append(sinkErrs, err)
		}
		if err := s.sink.WriteMirror(horizon, bundles); err != nil {
			logger.Error("Mirror write failed for %s: %v", horizon, err)
			sinkErrs = append(sinkErrs, err)
		}

		var records []models.HistoricalRecord
		for _, b := range bundles {
			records = append(records, b.HistoricalRecords()...)
		}
		if err := s.sink.AppendHistorical(records); err != nil {
			logger.Error("Historical append failed for %s: %v", horizon, err)
			sinkErrs = append(sinkErrs, err)
		}
	}

	report.Duration = time.Since(startedAt)
	logger.Info("%s", report.Summary())
	return report, errors.Join(sinkErrs...)
}

// runHorizon processes every date in the horizon's window through a bounded
// worker pool. Results land at fixed indices so order is stable regardless
// of completion order.
func (s *Scheduler) runHorizon(ctx context.Context, runID string, runAt time.Time, horizon models.Horizon, today time.Time) ([]models.Bundle, []models.UnitOutcome) {
	dates := horizon.Window(today)
	bundles := make([]models.Bundle, len(dates))
	outcomes := make([]models.UnitOutcome, len(dates))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			outcomes[i] = models.UnitOutcome{Horizon: horizon, Date: date, Err: err, ErrText: err.Error()}
			bundles[i] = models.Bundle{RunID: runID, RunTimestamp: runAt, Horizon: horizon, Date: date}
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, date time.Time) {
			defer wg.Done()
			defer func() { <-sem }()
			bundles[i], outcomes[i] = s.runUnit(ctx, runID, runAt, date, horizon)
		}(i, date)
	}
	wg.Wait()

	return bundles, outcomes
}

// runUnit drives one (date, horizon) through the whole pipeline. A terminal
// fetch failure flags the date's slot range as unknown instead of aborting.
func (s *Scheduler) runUnit(ctx context.Context, runID string, runAt time.Time, date time.Time, horizon models.Horizon) (models.Bundle, models.UnitOutcome) {
	window := s.calendar.HoursFor(date)
	bundle := models.Bundle{RunID: runID, RunTimestamp: runAt, Horizon: horizon, Date: date}
	outcome := models.UnitOutcome{Horizon: horizon, Date: date}

	raw, attempts, err := s.fetcher.Fetch(ctx, date, horizon)
	outcome.Attempts = attempts
	if err != nil {
		bundle.Anomalies = s.normalizer.FailedFetch(date, horizon, window, err)
		outcome.Anomalies = len(bundle.Anomalies)
		outcome.Err = err
		outcome.ErrText = err.Error()
		logger.Error("Unit %s (%s) failed terminally: %v", date.Format("2006-01-02"), horizon, err)
		return bundle, outcome
	}

	fetchedAt := time.Now()
	bundle.Observations, bundle.Anomalies = s.normalizer.Fetch(raw, date, horizon, window, fetchedAt)

	bundle.Revenues = make([]models.RevenueEstimate, len(bundle.Observations))
	bundle.Mirrors = make([]models.MirrorRecord, len(bundle.Observations))
	for i, obs := range bundle.Observations {
		bundle.Revenues[i] = s.model.Estimate(obs.Slot, obs.SpasBooked)
		mirrored := s.projector.Project(obs)
		bundle.Mirrors[i] = models.MirrorRecord{
			Observation: mirrored,
			Revenue:     s.model.Estimate(obs.Slot, mirrored.SpasBooked),
		}
	}

	outcome.Observations = len(bundle.Observations)
	outcome.Anomalies = len(bundle.Anomalies)
	logger.Debug("Unit %s (%s): %d observations, %d anomalies in %d attempts",
		date.Format("2006-01-02"), horizon, outcome.Observations, outcome.Anomalies, attempts)
	return bundle, outcome
}
