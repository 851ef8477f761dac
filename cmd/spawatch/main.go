package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mokoia/spawatch/internal/config"
	"github.com/mokoia/spawatch/internal/extractor"
	"github.com/mokoia/spawatch/internal/logger"
	"github.com/mokoia/spawatch/internal/mirror"
	"github.com/mokoia/spawatch/internal/models"
	"github.com/mokoia/spawatch/internal/normalize"
	"github.com/mokoia/spawatch/internal/revenue"
	"github.com/mokoia/spawatch/internal/runlog"
	"github.com/mokoia/spawatch/internal/scheduler"
	"github.com/mokoia/spawatch/internal/season"
	"github.com/mokoia/spawatch/internal/sink"
	"github.com/mokoia/spawatch/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run a single pipeline pass and exit")
	visible    = flag.Bool("visible", false, "Run the browser with a visible window")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info", "text")
		logger.Fatal("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Init("info", "text")
		logger.Fatal("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	if *visible {
		cfg.Extractor.Headless = false
	}

	horizons, err := cfg.Horizons()
	if err != nil {
		logger.Fatal("Invalid horizon configuration: %v", err)
	}

	model, err := revenue.New(
		cfg.Revenue.MaxCapacityPerSlot,
		cfg.Revenue.EveningCutoverHour,
		segments(cfg.Revenue.DaytimeSegments),
		segments(cfg.Revenue.EveningSegments),
	)
	if err != nil {
		logger.Fatal("Invalid revenue constants: %v", err)
	}

	projector, err := mirror.New(cfg.Mirror.FactorLow, cfg.Mirror.FactorHigh, nil)
	if err != nil {
		logger.Fatal("Invalid mirror band: %v", err)
	}

	calendar := season.New(
		season.Boundary{Month: time.Month(cfg.Season.SpringStartMonth), Day: cfg.Season.SpringStartDay},
		season.Boundary{Month: time.Month(cfg.Season.SpringEndMonth), Day: cfg.Season.SpringEndDay},
		season.Window{
			OpenHour:  cfg.Season.SpringOpenHour,
			CloseHour: cfg.Season.SpringCloseHour,
			SlotCount: cfg.Season.SpringCloseHour - cfg.Season.SpringOpenHour,
		},
		season.Window{
			OpenHour:  cfg.Season.RegularOpenHour,
			CloseHour: cfg.Season.RegularCloseHour,
			SlotCount: cfg.Season.RegularCloseHour - cfg.Season.RegularOpenHour,
		},
	)

	dataSink, err := buildSinks(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize sinks: %v", err)
	}
	defer dataSink.Close()

	runLog := runlog.New(cfg.RunLog.Dir, cfg.RunLog.MaxEntries)
	if err := runLog.Load(); err != nil {
		logger.Warn("Failed to load run history: %v", err)
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram notifications enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping after the current unit")
		cancel()
	}()

	source := extractor.NewChromeSource(extractor.ChromeOptions{
		URL:               cfg.Venue.BookingURL,
		DateParam:         cfg.Venue.DateParam,
		Headless:          cfg.Extractor.Headless,
		NavigationTimeout: cfg.Extractor.NavigationTimeout,
		RenderWait:        cfg.Extractor.RenderWait,
		Capacity:          cfg.Revenue.MaxCapacityPerSlot,
	})
	if err := source.Start(ctx); err != nil {
		logger.Fatal("Failed to start browser: %v", err)
	}
	defer source.Close()

	fetcher := extractor.New(source, extractor.Config{
		MaxAttempts:    cfg.Extractor.MaxAttempts,
		BackoffInitial: cfg.Extractor.BackoffInitial,
		BackoffMax:     cfg.Extractor.BackoffMax,
		RequestsPerSec: cfg.Extractor.RequestsPerSec,
		DiagnosticsDir: cfg.Extractor.DiagnosticsDir,
	})

	sched := scheduler.New(
		fetcher,
		normalize.New(cfg.Revenue.MaxCapacityPerSlot),
		model,
		projector,
		calendar,
		dataSink,
		cfg.Scheduler.Workers,
	)

	if *once {
		if err := runCycle(ctx, sched, horizons, runLog, telegramClient); err != nil {
			logger.Error("Pipeline run failed: %v", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("Starting pipeline service (poll: %v, horizons: %v, workers: %d)",
		cfg.Scheduler.PollInterval, cfg.Scheduler.Horizons, cfg.Scheduler.Workers)

	ticker := time.NewTicker(cfg.Scheduler.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	cycle := func() {
		err := runCycle(ctx, sched, horizons, runLog, telegramClient)
		if err != nil {
			consecutiveFailures++
			logger.Error("Pipeline run failed (%d consecutive): %v", consecutiveFailures, err)
			if consecutiveFailures == 3 && telegramClient != nil {
				if sendErr := telegramClient.SendError("Pipeline failing repeatedly", err); sendErr != nil {
					logger.Error("Failed to send alert: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures >= 3 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery("Pipeline is healthy again"); sendErr != nil {
				logger.Error("Failed to send recovery notice: %v", sendErr)
			}
		}
		consecutiveFailures = 0
	}

	if runLog.Stale(time.Now(), cfg.RunLog.StaleAfter) {
		logger.Info("Run history is stale, starting an immediate pass")
	}
	cycle()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return
		case <-ticker.C:
			if runLog.Stale(time.Now(), cfg.RunLog.StaleAfter) {
				logger.Warn("No run recorded in the last %v", cfg.RunLog.StaleAfter)
			}
			cycle()
		}
	}
}

// runCycle executes one pipeline pass and records its report.
func runCycle(ctx context.Context, sched *scheduler.Scheduler, horizons []models.Horizon, runLog *runlog.Log, telegramClient *telegram.Client) error {
	report, err := sched.Run(ctx, horizons, time.Now())
	if report != nil {
		if logErr := runLog.Record(report); logErr != nil {
			logger.Error("Failed to record run: %v", logErr)
		}
		if telegramClient != nil {
			if sendErr := telegramClient.SendReport(report); sendErr != nil {
				logger.Error("Failed to send run report: %v", sendErr)
			}
		}
	}
	return err
}

func buildSinks(cfg *config.Config) (sink.DataSink, error) {
	var sinks []sink.DataSink
	if cfg.Sinks.CSVEnabled {
		csvSink, err := sink.NewCSV(cfg.Sinks.CSVDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csvSink)
	}
	if cfg.Sinks.SQLiteEnabled {
		sqliteSink, err := sink.NewSQLite(cfg.Sinks.SQLitePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sqliteSink)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sink.NewMulti(sinks...), nil
}

func segments(configs []config.SegmentConfig) []revenue.Segment {
	result := make([]revenue.Segment, len(configs))
	for i, c := range configs {
		result[i] = revenue.Segment{
			Name:      c.Name,
			Price:     c.Price,
			AvgGuests: c.AvgGuests,
			Share:     c.Share,
		}
	}
	return result
}
