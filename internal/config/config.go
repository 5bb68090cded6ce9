package config

import (
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rewired-gh/salesmap/internal/analysis"
	"github.com/rewired-gh/salesmap/internal/geo"
	"github.com/rewired-gh/salesmap/internal/models"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Region   RegionConfig   `mapstructure:"region"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Importer ImporterConfig `mapstructure:"importer"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RegionConfig is the rectangle transactions must fall in to be analyzed
type RegionConfig struct {
	LatMin float64 `mapstructure:"lat_min"`
	LatMax float64 `mapstructure:"lat_max"`
	LngMin float64 `mapstructure:"lng_min"`
	LngMax float64 `mapstructure:"lng_max"`
}

// AnalysisConfig holds pipeline tuning
type AnalysisConfig struct {
	DefaultAmount     float64 `mapstructure:"default_amount"`
	HeatNormalization float64 `mapstructure:"heat_normalization"`
	FallbackLat       float64 `mapstructure:"fallback_lat"`
	FallbackLng       float64 `mapstructure:"fallback_lng"`
	Timezone          string  `mapstructure:"timezone"`
	DefaultMode       string  `mapstructure:"default_mode"`
	FilterOutliers    bool    `mapstructure:"filter_outliers"`
}

// FeedConfig controls how often storage is checked for new transactions
type FeedConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ImporterConfig holds the transaction export pull configuration
type ImporterConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	Interval       time.Duration `mapstructure:"interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// WatchConfig holds busy-spot shift detection settings
type WatchConfig struct {
	Mode        string        `mapstructure:"mode"`
	ShiftMeters float64       `mapstructure:"shift_meters"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	MaxTransactions int    `mapstructure:"max_transactions"`
	DBPath          string `mapstructure:"db_path"`
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

	// SALESMAP_SERVER_ADDR overrides server.addr
	v.SetEnvPrefix("SALESMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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

// setDefaults configures default values for all configuration options.
// Every key needs a default so environment overrides are picked up.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("region.lat_min", geo.DefaultBounds.LatMin)
	v.SetDefault("region.lat_max", geo.DefaultBounds.LatMax)
	v.SetDefault("region.lng_min", geo.DefaultBounds.LngMin)
	v.SetDefault("region.lng_max", geo.DefaultBounds.LngMax)

	d := analysis.DefaultConfig()
	v.SetDefault("analysis.default_amount", d.DefaultAmount)
	v.SetDefault("analysis.heat_normalization", d.HeatNormalization)
	v.SetDefault("analysis.fallback_lat", d.Fallback.Lat)
	v.SetDefault("analysis.fallback_lng", d.Fallback.Lng)
	v.SetDefault("analysis.timezone", "Asia/Jakarta")
	v.SetDefault("analysis.default_mode", string(analysis.ModeToday))
	v.SetDefault("analysis.filter_outliers", false)

	v.SetDefault("feed.poll_interval", "5s")

	v.SetDefault("importer.enabled", false)
	v.SetDefault("importer.url", "")
	v.SetDefault("importer.interval", "1m")
	v.SetDefault("importer.timeout", "30s")
	v.SetDefault("importer.max_retries", 3)
	v.SetDefault("importer.retry_delay_base", "1s")

	v.SetDefault("watch.mode", string(analysis.ModeToday))
	v.SetDefault("watch.shift_meters", 500.0)
	v.SetDefault("watch.cooldown", "30m")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.max_transactions", 100000)
	v.SetDefault("storage.db_path", "./data/salesmap.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.read_timeout and server.write_timeout must be positive")
	}

	if err := c.Bounds().Validate(); err != nil {
		return fmt.Errorf("region: %w", err)
	}

	if !positive(c.Analysis.DefaultAmount) {
		return fmt.Errorf("analysis.default_amount must be positive")
	}
	if !positive(c.Analysis.HeatNormalization) {
		return fmt.Errorf("analysis.heat_normalization must be positive")
	}
	if _, err := time.LoadLocation(c.Analysis.Timezone); err != nil {
		return fmt.Errorf("analysis.timezone is invalid: %w", err)
	}
	if !validMode(c.Analysis.DefaultMode) {
		return fmt.Errorf("analysis.default_mode must be one of: today, week, month, all")
	}

	if c.Feed.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("feed.poll_interval must be at least 100ms")
	}

	if c.Importer.Enabled {
		if c.Importer.URL == "" {
			return fmt.Errorf("importer.url is required when importer is enabled")
		}
		if c.Importer.Interval < 10*time.Second {
			return fmt.Errorf("importer.interval must be at least 10 seconds")
		}
		if c.Importer.Timeout <= 0 {
			return fmt.Errorf("importer.timeout must be positive")
		}
	}

	if !validMode(c.Watch.Mode) {
		return fmt.Errorf("watch.mode must be one of: today, week, month, all")
	}
	if c.Watch.ShiftMeters < 0 {
		return fmt.Errorf("watch.shift_meters must not be negative")
	}
	if c.Watch.Cooldown < 0 {
		return fmt.Errorf("watch.cooldown must not be negative")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.MaxTransactions < 1 {
		return fmt.Errorf("storage.max_transactions must be at least 1")
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

// Bounds returns the configured analysis region
func (c *Config) Bounds() geo.Bounds {
	return geo.Bounds{
		LatMin: c.Region.LatMin,
		LatMax: c.Region.LatMax,
		LngMin: c.Region.LngMin,
		LngMax: c.Region.LngMax,
	}
}

// Location loads the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Analysis.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PipelineConfig returns the analysis pipeline configuration
func (c *Config) PipelineConfig() analysis.Config {
	return analysis.Config{
		Bounds:            c.Bounds(),
		DefaultAmount:     c.Analysis.DefaultAmount,
		HeatNormalization: c.Analysis.HeatNormalization,
		Fallback:          models.LatLng{Lat: c.Analysis.FallbackLat, Lng: c.Analysis.FallbackLng},
		FilterOutliers:    c.Analysis.FilterOutliers,
	}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// validMode accepts every window mode that needs no picked date.
func validMode(mode string) bool {
	switch analysis.Mode(mode) {
	case analysis.ModeToday, analysis.ModeWeek, analysis.ModeMonth, analysis.ModeAll:
		return true
	}
	return false
}
