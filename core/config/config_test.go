package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// configEnv lists every variable Load reads. Nested fields are also looked
// up with their section prefix, e.g. IDENTITY_API_URL.
var configEnv = []string{
	"TOKEN", "TELEGRAM_RUN_MODE", "TELEGRAM_LONGPOLL_TIMEOUT_SECONDS",
	"WEBHOOK_URL", "WEBHOOK_LISTEN", "WEBHOOK_PORT",
	"API_URL", "API_TIMEOUT_MS", "TRANSLATIONS_PATH",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_CONNECTIONS", "DB_MIGRATIONS_DIR",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"RATE_LIMIT_INTERVAL_MS", "RATE_LIMIT_EXCLUDE_UPDATES",
}

// scrubEnv unsets every config variable inherited from the host until the test ends.
func scrubEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		for _, key := range configEnv {
			if name == key || strings.HasSuffix(name, "_"+key) {
				t.Setenv(name, "")
				if err := os.Unsetenv(name); err != nil {
					t.Fatal(err)
				}
				break
			}
		}
	}
}

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Identity: IdentityConfig{BaseURL: "https://identity.example.org/"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = "localhost"
	cfg.RateLimit.ExcludeUpdates = []string{" Contact "}

	if err := Normalize(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Identity.BaseURL != "https://identity.example.org" {
		t.Fatalf("base url = %q", cfg.Identity.BaseURL)
	}
	if cfg.Identity.TimeoutMS != DefaultIdentityTimeoutMS {
		t.Fatalf("timeout = %d", cfg.Identity.TimeoutMS)
	}
	db := cfg.Database
	if db.Port != "5432" || db.SSLMode != "disable" || db.MaxConnections != 4 || db.MigrationsDir != "migrations" {
		t.Fatalf("unexpected database defaults: %+v", db)
	}
	if !reflect.DeepEqual(cfg.RateLimit.ExcludeUpdates, []string{"contact"}) {
		t.Fatalf("exclusions = %v", cfg.RateLimit.ExcludeUpdates)
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "nil token", mutate: func(c *Config) { c.Telegram.Token = " " }, want: "token"},
		{name: "missing url", mutate: func(c *Config) { c.Identity.BaseURL = "" }, want: "identity base url is required"},
		{name: "relative url", mutate: func(c *Config) { c.Identity.BaseURL = "identity.local/api" }, want: "invalid identity base url"},
		{name: "ftp url", mutate: func(c *Config) { c.Identity.BaseURL = "ftp://identity.local" }, want: "invalid identity base url"},
		{name: "negative timeout", mutate: func(c *Config) { c.Identity.TimeoutMS = -1 }, want: "timeout_ms"},
		{name: "unknown run mode", mutate: func(c *Config) { c.Telegram.RunMode = "push" }, want: "invalid telegram.run_mode"},
		{name: "webhook without url", mutate: func(c *Config) { c.Telegram.RunMode = "webhook" }, want: "webhook.url"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, want: "logging.format"},
		{name: "bad exclusion", mutate: func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"callback"} }, want: "exclude_updates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Normalize(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
	if err := Normalize(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNormalizeAcceptsPollingAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "Polling"
	if err := Normalize(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	scrubEnv(t)
	t.Setenv("TOKEN", "42:env")
	t.Setenv("API_URL", "http://localhost:8080")
	t.Setenv("API_TIMEOUT_MS", "2500")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "42:env" || cfg.Identity.BaseURL != "http://localhost:8080" || cfg.Identity.TimeoutMS != 2500 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Database.Enabled() {
		t.Fatal("database must be disabled without DB_HOST")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	// values a developer machine may already export
	t.Setenv("API_TIMEOUT_MS", "900000")
	t.Setenv("LOGGING_LOG_LEVEL", "debug")
	scrubEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
telegram:
  token: "1:file"
  run_mode: longpoll
identity:
  base_url: http://file.local
  timeout_ms: 300
database:
  host: db.local
  name: signup
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("API_URL", "http://env.local/")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "1:file" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Identity.BaseURL != "http://env.local" || cfg.Identity.TimeoutMS != 300 {
		t.Fatalf("identity = %+v", cfg.Identity)
	}
	if cfg.Logging.Level != "" {
		t.Fatalf("log level leaked from environment: %q", cfg.Logging.Level)
	}
	if !cfg.Database.Enabled() || cfg.Database.Name != "signup" || cfg.Database.Port != "5432" {
		t.Fatalf("database = %+v", cfg.Database)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
