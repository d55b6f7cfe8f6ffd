package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/signupbot/core/config"
	"github.com/m3rciful/signupbot/core/logger"
	"github.com/m3rciful/signupbot/core/netutil"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/signupbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const (
	defaultLongPollTimeout = 10 * time.Second
	// apiRetries covers Bot API calls that failed before reaching Telegram.
	apiRetries = 3
)

// Middleware is a named global middleware, installed in list order.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint such as "/sign" or tele.OnText.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describes the bot Run starts.
type RunOptions struct {
	Config      *coreconfig.Config
	Registry    *Registry
	Sender      tgsender.Options
	Middlewares []Middleware
	Routes      []Route

	// Ready runs once handlers are installed, right before updates are received.
	Ready func(ctx context.Context)
	// Stopped runs after the last reply was delivered or dropped.
	// failed counts replies that could not be delivered.
	Stopped func(ctx context.Context, failed uint64)
}

// Run starts the bot and blocks until ctx is cancelled or polling stops.
// Replies queued while running are delivered before Run returns.
func Run(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	start := time.Now()
	poller := newPoller(cfg)
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: netutil.BuildHTTPClient(netutil.ClientOptions{RetryAttempts: apiRetries}),
	})
	if err != nil {
		return errors.New("telegram: connect: " + logger.Redact(err.Error()))
	}
	logPoller(ctx, poller, time.Since(start))
	if _, polling := poller.(*tele.LongPoller); polling {
		dropWebhook(ctx, bot)
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	routes := 0
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
			routes++
		}
	}
	SetupCommands(bot, reg)
	logger.Info(ctx, "tg.wire", "tg.wire.complete",
		slog.Int("middlewares", len(opts.Middlewares)),
		slog.Int("routes", routes),
		slog.Int("commands", len(reg.Commands())),
	)

	replies := tgsender.NewDispatcher(opts.Sender)
	tghelpers.SetDispatcher(replies)
	if opts.Ready != nil {
		opts.Ready(ctx)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
	case <-done:
	}

	tghelpers.SetDispatcher(nil)
	replies.Close()
	if opts.Stopped != nil {
		opts.Stopped(context.WithoutCancel(ctx), replies.ErrorCount())
	}
	return nil
}

// newPoller returns a webhook listener in webhook mode and a long poller otherwise.
func newPoller(cfg *coreconfig.Config) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(cfg.Telegram.RunMode), coreconfig.RunModeWebhook) {
		wh := cfg.Webhook
		return &tele.Webhook{
			Listen:   net.JoinHostPort(wh.Listen, strconv.Itoa(wh.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: wh.URL},
		}
	}
	timeout := defaultLongPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}

func logPoller(ctx context.Context, p tele.Poller, took time.Duration) {
	switch p := p.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "tg", "tg.mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
	case *tele.LongPoller:
		logger.Info(ctx, "tg", "tg.mode",
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Int("timeout_seconds", int(p.Timeout/time.Second)),
			slog.Duration("duration", took),
		)
	}
}

// dropWebhook removes a webhook left by an earlier webhook deployment;
// Telegram refuses getUpdates while one is set. Pending updates are kept.
func dropWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "tg.delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, "tg", "tg.delete_webhook", slog.String("status", "ok"))
}
