package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/signupbot/core/logger"
)

// RunMigrations applies the pending up migrations from cfg.MigrationsDir
// and logs which files moved the schema forward.
func RunMigrations(cfg Config) error {
	ctx := context.Background()
	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}
	files := listMigrationFiles(dir)
	logger.Debug(ctx, "db.migrate", "migrate.resolve",
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
	)

	m, err := migrate.New("file://"+dir, URLDSN(cfg))
	if err != nil {
		return fmt.Errorf("migrations init: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from := schemaVersion(m)
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "migrate.apply",
			slog.String("status", "fail"),
			slog.Uint64("from_ver", uint64(from)),
			slog.Duration("duration", time.Since(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrations up: %w", err)
	}
	to := schemaVersion(m)
	applied := appliedBetween(files, from, to)

	logger.Info(ctx, "db.migrate", "migrate.summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.String("applied", strings.Join(applied, ",")),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// schemaVersion is 0 for a database that has never been migrated.
func schemaVersion(m *migrate.Migrate) uint {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return v
}

// listMigrationFiles returns the sorted names of the *.up.sql files in dir.
func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// appliedBetween picks the files whose version lies in (from, to].
func appliedBetween(files []string, from, to uint) []string {
	var out []string
	for _, name := range files {
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && uint(v) > from && uint(v) <= to {
			out = append(out, name)
		}
	}
	return out
}
