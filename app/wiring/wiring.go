// Package wiring assembles the signup bot from configuration.
package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/signupbot/app/attempts"
	"github.com/m3rciful/signupbot/app/i18n"
	"github.com/m3rciful/signupbot/app/identity"
	"github.com/m3rciful/signupbot/app/signup"
	"github.com/m3rciful/signupbot/app/transport"
	"github.com/m3rciful/signupbot/core/bootstrap"
	corecmd "github.com/m3rciful/signupbot/core/cmd"
	coreconfig "github.com/m3rciful/signupbot/core/config"
	"github.com/m3rciful/signupbot/core/logger"
	"github.com/m3rciful/signupbot/core/netutil"
	coretelegram "github.com/m3rciful/signupbot/core/telegram"
	"github.com/m3rciful/signupbot/core/telegram/state"
)

// App holds the wired components of a running bot.
type App struct {
	cfg     *coreconfig.Config
	infra   *bootstrap.Result
	adapter *transport.Adapter
}

// Bootstrap runs the infrastructure pipeline and builds the bot on top of it.
func Bootstrap(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
	infra, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	app, err := New(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return app, nil
}

// New builds the conversation stack. infra may be nil when no database is used.
func New(cfg *coreconfig.Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("wiring: nil config")
	}
	if infra == nil {
		infra = &bootstrap.Result{}
	}

	tr, err := i18n.Load(cfg.I18n.Path)
	if err != nil {
		return nil, fmt.Errorf("wiring: translations: %w", err)
	}

	timeout := time.Duration(cfg.Identity.TimeoutMS) * time.Millisecond
	// Sign-up submissions are never retried, so the identity client gets no retry transport.
	httpClient := netutil.BuildHTTPClient(netutil.ClientOptions{Timeout: timeout})
	id := identity.NewClient(cfg.Identity.BaseURL, timeout, httpClient)

	opts := signup.Options{
		Sessions:   state.NewMemoryManager(),
		Translator: tr,
		Identity:   id,
	}
	if infra.DB != nil {
		opts.Journal = attempts.NewJournal(infra.DB)
	}
	ctrl, err := signup.New(opts)
	if err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	logger.Info(context.Background(), "app", "app.wired",
		slog.String("languages", fmt.Sprint(tr.Languages())),
		slog.Bool("journal", opts.Journal != nil),
		slog.Duration("identity_timeout", timeout),
	)

	return &App{
		cfg:     cfg,
		infra:   infra,
		adapter: transport.New(ctrl),
	}, nil
}

// TelegramRunOptions returns the bot runtime configuration.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.adapter.Register(reg)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      a.adapter.Routes(reg),
	}, nil
}

// Close releases the database connection if one was opened.
func (a *App) Close() error {
	return a.infra.Close()
}
