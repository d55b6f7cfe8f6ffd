package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/signupbot/core/config"
	coredatabase "github.com/m3rciful/signupbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	connected := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if connected || res.DB != nil {
		t.Fatal("database must not be touched when not configured")
	}
	if err := res.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunPropagatesFailures(t *testing.T) {
	boom := errors.New("boom")
	dbCfg := coreconfig.DatabaseConfig{Host: "db"}

	tests := []struct {
		name string
		opts Options
	}{
		{
			name: "logger",
			opts: Options{
				Config:     &coreconfig.Config{},
				LoggerInit: func(*coreconfig.Config) error { return boom },
			},
		},
		{
			name: "connect",
			opts: Options{
				Config:     &coreconfig.Config{Database: dbCfg},
				LoggerInit: noLogger,
				Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return nil, boom },
			},
		},
		{
			name: "migrate",
			opts: Options{
				Config:     &coreconfig.Config{Database: dbCfg},
				LoggerInit: noLogger,
				Connect: func(c coredatabase.Config) (*sqlx.DB, error) {
					return sqlx.Open("postgres", coredatabase.KeyValueDSN(c))
				},
				Migrate: func(coredatabase.Config) error { return boom },
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Run(tt.opts); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want %v", err, boom)
			}
		})
	}

	if _, err := Run(Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
