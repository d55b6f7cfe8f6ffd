package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/signupbot/core/logger"
)

const (
	// readyTimeout bounds how long Connect waits for Postgres to accept connections.
	readyTimeout = 30 * time.Second
	pingInterval = 2 * time.Second
)

// Connect opens the attempt journal database, waiting up to readyTimeout for
// Postgres to answer, and sizes the pool from cfg.MaxConnections.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	start := time.Now()
	db, err := waitReady(ctx, KeyValueDSN(cfg))
	if err != nil {
		logger.Error(ctx, "db", "db.connect",
			slog.String("status", "fail"),
			slog.String("addr", addr),
			slog.String("db", cfg.Name),
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect %s: %w", addr, err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.Info(ctx, "db", "db.connect",
		slog.String("status", "ok"),
		slog.String("addr", addr),
		slog.String("db", cfg.Name),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", time.Since(start)),
	)
	return db, nil
}

// waitReady pings dsn every pingInterval until it answers or ctx is done.
func waitReady(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	tick := time.NewTicker(pingInterval)
	defer tick.Stop()
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		logger.Debug(ctx, "db", "db.ping",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres not ready: %w", err)
		case <-tick.C:
		}
	}
}
