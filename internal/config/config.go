package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Sections and keys are
// separated by a double underscore: VISA_TIMELINE_STORAGE__DRIVER.
const EnvPrefix = "VISA_TIMELINE_"

// Storage driver names (duplicated from storage package to avoid import cycle)
const (
	DriverSQLite   = "sqlite"
	DriverDiskv    = "diskv"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Storage  StorageConfig  `koanf:"storage"`
	Timeline TimelineConfig `koanf:"timeline"`
	Detector DetectorConfig `koanf:"detector"`
	Notify   NotifyConfig   `koanf:"notify"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	UI       UIConfig       `koanf:"ui"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"` // SQLite file or diskv directory
	DSN    string `koanf:"dsn"`  // Postgres connection string
	Key    string `koanf:"key"`
}

type TimelineConfig struct {
	ReminderHour int    `koanf:"reminder_hour"`
	Timezone     string `koanf:"timezone"` // IANA name or "Local"
	AppName      string `koanf:"app_name"`
}

type DetectorConfig struct {
	MaxChars       int `koanf:"max_chars"`
	MaxHits        int `koanf:"max_hits"`
	Window         int `koanf:"window"`
	InitialDelayMS int `koanf:"initial_delay_ms"`
	IntervalMS     int `koanf:"interval_ms"`
}

type NotifyConfig struct {
	Enabled  bool           `koanf:"enabled"`
	DBPath   string         `koanf:"db_path"`
	Interval int            `koanf:"interval"` // Seconds between dispatch passes
	Telegram TelegramConfig `koanf:"telegram"`
}

type TelegramConfig struct {
	BotToken string `koanf:"bot_token"`
	ChatID   string `koanf:"chat_id"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type UIConfig struct {
	ColoredOutput bool `koanf:"colored_output"`
}

func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Handle the Telegram variables shared with other tools
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		k.Set("notify.telegram.bot_token", token)
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		k.Set("notify.telegram.chat_id", chatID)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.Path = expandPath(cfg.Storage.Path)
	cfg.Notify.DBPath = expandPath(cfg.Notify.DBPath)

	return &cfg, nil
}

// envKey maps VISA_TIMELINE_NOTIFY__TELEGRAM__CHAT_ID to notify.telegram.chat_id.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverDiskv:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s driver", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver (set %sSTORAGE__DSN)", EnvPrefix)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %s (supported: %s, %s, %s, %s)",
			c.Storage.Driver, DriverSQLite, DriverDiskv, DriverPostgres, DriverMemory)
	}

	if c.Timeline.ReminderHour < 0 || c.Timeline.ReminderHour > 23 {
		return fmt.Errorf("reminder_hour must be between 0 and 23")
	}

	if _, err := c.Timeline.Location(); err != nil {
		return err
	}

	if c.Detector.MaxChars <= 0 || c.Detector.MaxHits <= 0 || c.Detector.Window <= 0 {
		return fmt.Errorf("detector max_chars, max_hits and window must be positive")
	}

	if c.Detector.InitialDelayMS < 0 || c.Detector.IntervalMS <= 0 {
		return fmt.Errorf("detector initial_delay_ms must not be negative and interval_ms must be positive")
	}

	if c.Notify.Enabled {
		if c.Notify.DBPath == "" {
			return fmt.Errorf("notify.db_path is required when notifications are enabled")
		}
		if c.Notify.Interval <= 0 {
			return fmt.Errorf("notify.interval must be positive")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// Location resolves the configured timezone.
func (c TimelineConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c DetectorConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMS) * time.Millisecond
}

func (c DetectorConfig) ScanInterval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c NotifyConfig) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// HasTelegram reports whether both Telegram credentials are set.
func (c NotifyConfig) HasTelegram() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}
