// Package bootstrap prepares the infrastructure the bot runs on: logging
// first, then the optional attempt journal database.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/signupbot/core/config"
	coredatabase "github.com/m3rciful/signupbot/core/database"
	"github.com/m3rciful/signupbot/core/logger"
)

// Options carries the config and, for tests, replacements for each step.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result holds what Run brought up.
type Result struct {
	// DB is nil when no database is configured.
	DB *sqlx.DB
}

// Close releases the database connection, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when a database is configured, connects
// to it and applies migrations. A failed migration closes the connection.
func Run(opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("bootstrap: nil config")
	}
	initLogger, connect, migrate := opts.LoggerInit, opts.Connect, opts.Migrate
	if initLogger == nil {
		initLogger = logger.Init
	}
	if connect == nil {
		connect = coredatabase.Connect
	}
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	if err := initLogger(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	if !cfg.Database.Enabled() {
		logger.Info(context.Background(), "db", "db.skip", slog.String("reason", "not_configured"))
		return &Result{}, nil
	}
	db, err := connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := migrate(cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations: %w", err)
	}
	return &Result{DB: db}, nil
}
