package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// IdentityConfig points the bot at the external identity service.
type IdentityConfig struct {
	BaseURL   string `yaml:"base_url" envconfig:"API_URL"`
	TimeoutMS int    `yaml:"timeout_ms" envconfig:"API_TIMEOUT_MS"`
}

// I18nConfig selects the translation resource. Empty path uses the embedded table.
type I18nConfig struct {
	Path string `yaml:"path" envconfig:"TRANSLATIONS_PATH"`
}

// DatabaseConfig holds connection settings for the optional attempts journal.
// The journal is disabled when Host is empty.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.Host) != ""
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
	// Format is "json" (default) or "text".
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// File mirrors the log into a rotated file; MaxSizeMB, MaxBackups and MaxAgeDays tune rotation.
	File       string `yaml:"file" envconfig:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateContact identifies shared contacts for rate limit exclusions.
	UpdateContact = "contact"
)

// DefaultIdentityTimeoutMS bounds a single identity service call.
const DefaultIdentityTimeoutMS = 10000

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "message": standard text messages and commands
// - "contact": shared contacts
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Identity  IdentityConfig  `yaml:"identity"`
	I18n      I18nConfig      `yaml:"i18n"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads configuration from an optional YAML file and environment variables.
// Environment values override the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults. Any error is fatal at startup.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}
	steps := []func(*Config) error{
		normalizeIdentity,
		normalizeRunMode,
		normalizeDatabase,
		normalizeLogging,
		normalizeRateLimit,
	}
	for _, step := range steps {
		if err := step(cfg); err != nil {
			return err
		}
	}
	return nil
}

func normalizeIdentity(cfg *Config) error {
	id := &cfg.Identity
	base := strings.TrimSpace(id.BaseURL)
	if base == "" {
		return fmt.Errorf("identity base url is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid identity base url %q; expected absolute http(s) url", id.BaseURL)
	}
	id.BaseURL = strings.TrimRight(base, "/")

	switch {
	case id.TimeoutMS < 0:
		return fmt.Errorf("identity.timeout_ms must be >= 0")
	case id.TimeoutMS == 0:
		id.TimeoutMS = DefaultIdentityTimeoutMS
	}
	return nil
}

func normalizeRunMode(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling":
		mode = RunModeLongpoll
	}

	switch mode {
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	case RunModeWebhook:
		wh := cfg.Webhook
		var missing []string
		if strings.TrimSpace(wh.URL) == "" {
			missing = append(missing, "webhook.url")
		}
		if strings.TrimSpace(wh.Listen) == "" {
			missing = append(missing, "webhook.listen")
		}
		if wh.Port <= 0 {
			missing = append(missing, "webhook.port")
		}
		if len(missing) > 0 {
			return fmt.Errorf("webhook run mode requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = mode
	return nil
}

// normalizeDatabase fills defaults only for a configured journal database.
func normalizeDatabase(cfg *Config) error {
	db := &cfg.Database
	if !db.Enabled() {
		return nil
	}
	db.Port = stringOr(db.Port, "5432")
	db.SSLMode = stringOr(db.SSLMode, "disable")
	db.MigrationsDir = stringOr(db.MigrationsDir, "migrations")
	if db.MaxConnections <= 0 {
		db.MaxConnections = 4
	}
	return nil
}

func normalizeLogging(cfg *Config) error {
	format := strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	switch format {
	case "", "json", "text":
		cfg.Logging.Format = format
		return nil
	}
	return fmt.Errorf("invalid logging.format %q; allowed: json, text", cfg.Logging.Format)
}

func normalizeRateLimit(cfg *Config) error {
	kept := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch kind {
		case "":
			continue
		case UpdateMessage, UpdateContact:
			kept = append(kept, kind)
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: message, contact", v)
		}
	}
	cfg.RateLimit.ExcludeUpdates = kept
	return nil
}

func stringOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
