package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/signupbot/core/config"
	"github.com/m3rciful/signupbot/core/logger"
	coretelegram "github.com/m3rciful/signupbot/core/telegram"
)

// TelegramApp is a wired bot: it describes how to run and releases its resources on Close.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	Close() error
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
// Only Bootstrap is required; the other hooks default to the real implementations.
type Options struct {
	// ConfigEnvVar names the variable holding the config file path. Defaults to CONFIG_PATH.
	ConfigEnvVar      string
	DefaultConfigPath string
	// EnvFiles are loaded into the environment before configuration; missing files are ignored.
	EnvFiles []string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(cfg *coreconfig.Config) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options) withDefaults() Options {
	if o.ConfigEnvVar == "" {
		o.ConfigEnvVar = "CONFIG_PATH"
	}
	if o.LoadConfig == nil {
		o.LoadConfig = coreconfig.Load
	}
	if o.ShutdownLogger == nil {
		o.ShutdownLogger = logger.Shutdown
	}
	if o.RunTelegram == nil {
		o.RunTelegram = coretelegram.Run
	}
	return o
}

func (o Options) configPath() string {
	if p := os.Getenv(o.ConfigEnvVar); p != "" {
		return p
	}
	return o.DefaultConfigPath
}

// Run loads configuration, bootstraps the app and runs the bot until SIGINT or SIGTERM.
func Run(opts Options) error {
	began := time.Now()
	if opts.Bootstrap == nil {
		return errors.New("cmd: Bootstrap is required")
	}
	opts = opts.withDefaults()

	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return fmt.Errorf("cmd: env file: %w", err)
	}
	path := opts.configPath()
	if path == "" {
		log.Printf("loading config from environment")
	} else {
		log.Printf("loading config: %s", path)
	}
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	defer func() {
		if err := opts.ShutdownLogger(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()
	defer closeApp(app)

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	ready, stopped := runOpts.Ready, runOpts.Stopped
	runOpts.Ready = func(ctx context.Context) {
		if ready != nil {
			ready(ctx)
		}
		logger.Info(ctx, "app", "ready", slog.Duration("startup_duration", time.Since(began)))
	}
	runOpts.Stopped = func(ctx context.Context, failed uint64) {
		logger.Info(ctx, "app", "shutdown", slog.Uint64("send_errors", failed))
		if stopped != nil {
			stopped(ctx, failed)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return opts.RunTelegram(ctx, runOpts)
}

func closeApp(app TelegramApp) {
	if err := app.Close(); err != nil {
		logger.Warn(context.Background(), "app", "app.close",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// loadEnvFiles never overrides variables already present in the environment.
func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
