package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Local storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds the configuration for the application.
type Config struct {
	APIURL       string `yaml:"api_url"`
	DataDir      string `yaml:"data_dir"`
	LocalBackend string `yaml:"local_backend"`

	HealthTimeout  time.Duration `yaml:"health_timeout"`
	SyncInterval   time.Duration `yaml:"sync_interval"`
	NotifyInterval time.Duration `yaml:"notify_interval"`
	IdleReminder   time.Duration `yaml:"idle_reminder"`
	SyncAttempts   uint          `yaml:"sync_attempts"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// Telegram Config (optional toast sink)
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`
}

// Defaults returns a Config with every optional field set.
func Defaults() Config {
	return Config{
		DataDir:        "./data",
		LocalBackend:   BackendSQLite,
		HealthTimeout:  5 * time.Second,
		SyncInterval:   30 * time.Second,
		NotifyInterval: 10 * time.Second,
		IdleReminder:   2 * time.Hour,
		SyncAttempts:   3,
		LogLevel:       "info",
	}
}

// NewFromEnv creates a new Config object from environment variables.
// Values from the YAML file named by MEALSYNC_CONFIG_FILE fill in anything the
// environment leaves unset.
func NewFromEnv() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("MEALSYNC_CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("MEALSYNC_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("MEALSYNC_API_URL environment variable not set")
	}

	if v := os.Getenv("MEALSYNC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MEALSYNC_LOCAL_BACKEND"); v != "" {
		cfg.LocalBackend = v
	}
	if cfg.LocalBackend != BackendSQLite && cfg.LocalBackend != BackendFile {
		return nil, fmt.Errorf("MEALSYNC_LOCAL_BACKEND must be %q or %q, got %q", BackendSQLite, BackendFile, cfg.LocalBackend)
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"MEALSYNC_HEALTH_TIMEOUT", &cfg.HealthTimeout},
		{"MEALSYNC_SYNC_INTERVAL", &cfg.SyncInterval},
		{"MEALSYNC_NOTIFY_INTERVAL", &cfg.NotifyInterval},
		{"MEALSYNC_IDLE_REMINDER", &cfg.IdleReminder},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration, got %q", d.env, v)
		}
		*d.dst = parsed
	}

	if v := os.Getenv("MEALSYNC_SYNC_ATTEMPTS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("MEALSYNC_SYNC_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.SyncAttempts = uint(n)
	}

	if v := os.Getenv("MEALSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MEALSYNC_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be an integer, got %q", v)
		}
		cfg.TelegramChatID = id
	}

	return &cfg, nil
}

// overlayFile reads a YAML config file on top of cfg. Zero values in the file
// keep the current value.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.APIURL != "" {
		cfg.APIURL = file.APIURL
	}
	if file.DataDir != "" {
		cfg.DataDir = file.DataDir
	}
	if file.LocalBackend != "" {
		cfg.LocalBackend = file.LocalBackend
	}
	if file.HealthTimeout > 0 {
		cfg.HealthTimeout = file.HealthTimeout
	}
	if file.SyncInterval > 0 {
		cfg.SyncInterval = file.SyncInterval
	}
	if file.NotifyInterval > 0 {
		cfg.NotifyInterval = file.NotifyInterval
	}
	if file.IdleReminder > 0 {
		cfg.IdleReminder = file.IdleReminder
	}
	if file.SyncAttempts > 0 {
		cfg.SyncAttempts = file.SyncAttempts
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFile != "" {
		cfg.LogFile = file.LogFile
	}
	if file.TelegramBotToken != "" {
		cfg.TelegramBotToken = file.TelegramBotToken
	}
	if file.TelegramChatID != 0 {
		cfg.TelegramChatID = file.TelegramChatID
	}
	return nil
}
