package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mokoia/spawatch/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Venue     VenueConfig     `mapstructure:"venue"`
	Revenue   RevenueConfig   `mapstructure:"revenue"`
	Season    SeasonConfig    `mapstructure:"season"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sinks     SinksConfig     `mapstructure:"sinks"`
	RunLog    RunLogConfig    `mapstructure:"run_log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// VenueConfig locates the booking calendar
type VenueConfig struct {
	BookingURL string `mapstructure:"booking_url"`
	DateParam  string `mapstructure:"date_param"`
}

// SegmentConfig is one guest segment in a revenue mix table
type SegmentConfig struct {
	Name      string  `mapstructure:"name"`
	Price     float64 `mapstructure:"price"`
	AvgGuests float64 `mapstructure:"avg_guests"`
	Share     float64 `mapstructure:"share"`
}

// RevenueConfig holds the venue's capacity and segment-mix constants
type RevenueConfig struct {
	MaxCapacityPerSlot int             `mapstructure:"max_capacity_per_slot"`
	EveningCutoverHour int             `mapstructure:"evening_cutover_hour"`
	DaytimeSegments    []SegmentConfig `mapstructure:"daytime_segments"`
	EveningSegments    []SegmentConfig `mapstructure:"evening_segments"`
}

// SeasonConfig defines the operating-hours calendar
type SeasonConfig struct {
	SpringStartMonth int `mapstructure:"spring_start_month"`
	SpringStartDay   int `mapstructure:"spring_start_day"`
	SpringEndMonth   int `mapstructure:"spring_end_month"`
	SpringEndDay     int `mapstructure:"spring_end_day"`
	SpringOpenHour   int `mapstructure:"spring_open_hour"`
	SpringCloseHour  int `mapstructure:"spring_close_hour"`
	RegularOpenHour  int `mapstructure:"regular_open_hour"`
	RegularCloseHour int `mapstructure:"regular_close_hour"`
}

// ExtractorConfig bounds the browser-extraction retry machine
type ExtractorConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	RequestsPerSec    float64       `mapstructure:"requests_per_sec"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	RenderWait        time.Duration `mapstructure:"render_wait"`
	Headless          bool          `mapstructure:"headless"`
	DiagnosticsDir    string        `mapstructure:"diagnostics_dir"`
}

// MirrorConfig holds the reduction band for the mirror projection
type MirrorConfig struct {
	FactorLow  float64 `mapstructure:"factor_low"`
	FactorHigh float64 `mapstructure:"factor_high"`
}

// SchedulerConfig holds run cadence and concurrency
type SchedulerConfig struct {
	Horizons     []string      `mapstructure:"horizons"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Workers      int           `mapstructure:"workers"`
}

// SinksConfig selects and locates the output stores
type SinksConfig struct {
	CSVEnabled    bool   `mapstructure:"csv_enabled"`
	CSVDir        string `mapstructure:"csv_dir"`
	SQLiteEnabled bool   `mapstructure:"sqlite_enabled"`
	SQLitePath    string `mapstructure:"sqlite_path"`
}

// RunLogConfig holds run-history persistence configuration
type RunLogConfig struct {
	Dir        string        `mapstructure:"dir"`
	MaxEntries int           `mapstructure:"max_entries"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("SPAWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Venue defaults
	v.SetDefault("venue.date_param", "date")

	// Revenue defaults: the stock 9-spa mix
	v.SetDefault("revenue.max_capacity_per_slot", 9)
	v.SetDefault("revenue.evening_cutover_hour", 18)
	v.SetDefault("revenue.daytime_segments", []map[string]any{
		{"name": "couples", "price": 175.0, "avg_guests": 2.0, "share": 0.60},
		{"name": "groups", "price": 260.0, "avg_guests": 3.5, "share": 0.20},
		{"name": "families", "price": 235.0, "avg_guests": 4.0, "share": 0.20},
	})
	v.SetDefault("revenue.evening_segments", []map[string]any{
		{"name": "couples", "price": 175.0, "avg_guests": 2.0, "share": 0.75},
		{"name": "groups", "price": 260.0, "avg_guests": 3.5, "share": 0.25},
	})

	// Season defaults
	v.SetDefault("season.spring_start_month", 8)
	v.SetDefault("season.spring_start_day", 21)
	v.SetDefault("season.spring_end_month", 10)
	v.SetDefault("season.spring_end_day", 31)
	v.SetDefault("season.spring_open_hour", 9)
	v.SetDefault("season.spring_close_hour", 23)
	v.SetDefault("season.regular_open_hour", 10)
	v.SetDefault("season.regular_close_hour", 23)

	// Extractor defaults
	v.SetDefault("extractor.max_attempts", 3)
	v.SetDefault("extractor.backoff_initial", "2s")
	v.SetDefault("extractor.backoff_max", "30s")
	v.SetDefault("extractor.requests_per_sec", 0.5)
	v.SetDefault("extractor.navigation_timeout", "30s")
	v.SetDefault("extractor.render_wait", "3s")
	v.SetDefault("extractor.headless", true)
	v.SetDefault("extractor.diagnostics_dir", "./data/diagnostics")

	// Mirror defaults
	v.SetDefault("mirror.factor_low", 0.90)
	v.SetDefault("mirror.factor_high", 0.95)

	// Scheduler defaults
	v.SetDefault("scheduler.horizons", []string{
		"SameDay", "SevenDays", "ThirtyDays", "SixtyDays", "NinetyDays",
	})
	v.SetDefault("scheduler.poll_interval", "6h")
	v.SetDefault("scheduler.workers", 1)

	// Sink defaults
	v.SetDefault("sinks.csv_enabled", true)
	v.SetDefault("sinks.csv_dir", "./data/exports")
	v.SetDefault("sinks.sqlite_enabled", true)
	v.SetDefault("sinks.sqlite_path", "./data/spawatch.db")

	// Run log defaults
	v.SetDefault("run_log.dir", "./data/runs")
	v.SetDefault("run_log.max_entries", 100)
	v.SetDefault("run_log.stale_after", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Venue.BookingURL == "" {
		return fmt.Errorf("venue.booking_url is required")
	}
	if c.Venue.DateParam == "" {
		return fmt.Errorf("venue.date_param is required")
	}

	if c.Revenue.MaxCapacityPerSlot < 1 {
		return fmt.Errorf("revenue.max_capacity_per_slot must be at least 1")
	}
	if c.Revenue.EveningCutoverHour < 0 || c.Revenue.EveningCutoverHour > 24 {
		return fmt.Errorf("revenue.evening_cutover_hour must be between 0 and 24")
	}
	if len(c.Revenue.DaytimeSegments) == 0 {
		return fmt.Errorf("revenue.daytime_segments must contain at least one segment")
	}
	if len(c.Revenue.EveningSegments) == 0 {
		return fmt.Errorf("revenue.evening_segments must contain at least one segment")
	}

	for _, m := range []struct {
		name  string
		month int
		day   int
	}{
		{"season.spring_start", c.Season.SpringStartMonth, c.Season.SpringStartDay},
		{"season.spring_end", c.Season.SpringEndMonth, c.Season.SpringEndDay},
	} {
		if m.month < 1 || m.month > 12 {
			return fmt.Errorf("%s_month must be between 1 and 12", m.name)
		}
		if m.day < 1 || m.day > 31 {
			return fmt.Errorf("%s_day must be between 1 and 31", m.name)
		}
	}
	for _, h := range []struct {
		name string
		open int
		cls  int
	}{
		{"season.spring", c.Season.SpringOpenHour, c.Season.SpringCloseHour},
		{"season.regular", c.Season.RegularOpenHour, c.Season.RegularCloseHour},
	} {
		if h.open < 0 || h.open > 23 {
			return fmt.Errorf("%s_open_hour must be between 0 and 23", h.name)
		}
		if h.cls <= h.open || h.cls > 24 {
			return fmt.Errorf("%s_close_hour must be after the open hour and at most 24", h.name)
		}
	}

	if c.Extractor.MaxAttempts < 1 {
		return fmt.Errorf("extractor.max_attempts must be at least 1")
	}
	if c.Extractor.RequestsPerSec <= 0 {
		return fmt.Errorf("extractor.requests_per_sec must be positive")
	}
	if c.Extractor.NavigationTimeout < time.Second {
		return fmt.Errorf("extractor.navigation_timeout must be at least 1 second")
	}

	if c.Mirror.FactorLow < 0 || c.Mirror.FactorHigh > 1 || c.Mirror.FactorLow > c.Mirror.FactorHigh {
		return fmt.Errorf("mirror factor band [%v, %v] must satisfy 0 <= low <= high <= 1",
			c.Mirror.FactorLow, c.Mirror.FactorHigh)
	}

	if len(c.Scheduler.Horizons) == 0 {
		return fmt.Errorf("scheduler.horizons must contain at least one horizon")
	}
	if _, err := c.Horizons(); err != nil {
		return err
	}
	if c.Scheduler.PollInterval < time.Minute {
		return fmt.Errorf("scheduler.poll_interval must be at least 1 minute")
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be at least 1")
	}

	if !c.Sinks.CSVEnabled && !c.Sinks.SQLiteEnabled {
		return fmt.Errorf("at least one sink must be enabled")
	}
	if c.Sinks.CSVEnabled && c.Sinks.CSVDir == "" {
		return fmt.Errorf("sinks.csv_dir is required when the CSV sink is enabled")
	}
	if c.Sinks.SQLiteEnabled && c.Sinks.SQLitePath == "" {
		return fmt.Errorf("sinks.sqlite_path is required when the SQLite sink is enabled")
	}

	if c.RunLog.MaxEntries < 1 {
		return fmt.Errorf("run_log.max_entries must be at least 1")
	}
	if c.RunLog.StaleAfter < time.Minute {
		return fmt.Errorf("run_log.stale_after must be at least 1 minute")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Horizons parses the configured horizon labels.
func (c *Config) Horizons() ([]models.Horizon, error) {
	horizons := make([]models.Horizon, 0, len(c.Scheduler.Horizons))
	for _, label := range c.Scheduler.Horizons {
		h, err := models.ParseHorizon(label)
		if err != nil {
			return nil, fmt.Errorf("scheduler.horizons: %w", err)
		}
		horizons = append(horizons, h)
	}
	return horizons, nil
}
