// Package logger emits one structured line per event. Every line names the
// component and event that produced it and carries the update and
// conversation fields stored in the context (see Fields).
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m3rciful/signupbot/core/buildinfo"
	coreconfig "github.com/m3rciful/signupbot/core/config"
)

const (
	rotateMaxSizeMB  = 50
	rotateMaxBackups = 5
	rotateMaxAgeDays = 14
)

var (
	active atomic.Pointer[slog.Logger]
	level  slog.LevelVar

	sinksMu sync.Mutex
	sinks   []io.Closer
)

// Init installs the process logger described by cfg.Logging and logs the
// startup line. A second call replaces the previous sinks.
func Init(cfg *coreconfig.Config) error {
	var lc coreconfig.LoggingConfig
	if cfg != nil {
		lc = cfg.Logging
	}
	level.Set(parseLevel(lc.Level))

	out, closers, err := openSinks(lc)
	if err != nil {
		return err
	}
	l := slog.New(newHandler(out, lc.Format, &level))

	sinksMu.Lock()
	previous := sinks
	sinks = closers
	sinksMu.Unlock()

	active.Store(l)
	slog.SetDefault(l)
	closeSinks(previous)

	logStartup(cfg)
	return nil
}

// Shutdown closes file sinks. Lines logged afterwards still reach stdout.
func Shutdown() error {
	sinksMu.Lock()
	closers := sinks
	sinks = nil
	sinksMu.Unlock()
	return closeSinks(closers)
}

func closeSinks(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openSinks always writes to stdout and mirrors into a rotated file when one is configured.
func openSinks(lc coreconfig.LoggingConfig) (io.Writer, []io.Closer, error) {
	file := strings.TrimSpace(lc.File)
	if file == "" {
		return os.Stdout, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, err
	}
	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    orDefault(lc.MaxSizeMB, rotateMaxSizeMB),
		MaxBackups: orDefault(lc.MaxBackups, rotateMaxBackups),
		MaxAge:     orDefault(lc.MaxAgeDays, rotateMaxAgeDays),
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, rotating), []io.Closer{rotating}, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func logStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("mode", cfg.Telegram.RunMode),
			slog.String("identity", cfg.Identity.BaseURL),
			slog.Bool("journal", cfg.Database.Enabled()),
		)
	}
	Info(context.Background(), "app", "startup", attrs...)
}

// Debug logs a debug event of component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, component, event, attrs)
}

// Info logs an info event of component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, component, event, attrs)
}

// Warn logs a warning event of component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, component, event, attrs)
}

// Error logs an error event of component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, component, event, attrs)
}

// emit is a no-op until Init has run, so packages can log from tests.
func emit(ctx context.Context, lvl slog.Level, component, event string, attrs []slog.Attr) {
	l := active.Load()
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, lvl) {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+1)
	all = append(all, slog.String("component", component))
	l.LogAttrs(ctx, lvl, event, append(all, attrs...)...)
}
