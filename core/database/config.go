package database

import (
	"fmt"
	"net"
	"net/url"

	coreconfig "github.com/m3rciful/signupbot/core/config"
)

// Config holds database connection settings; it is declared in core/config
// so the YAML and env layers can populate it.
type Config = coreconfig.DatabaseConfig

// KeyValueDSN renders the lib/pq key=value connection string.
func KeyValueDSN(cfg Config) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// URLDSN renders the postgres:// URL expected by golang-migrate.
func URLDSN(cfg Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}
