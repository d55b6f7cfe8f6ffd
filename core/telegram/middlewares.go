package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/signupbot/core/config"
	"github.com/m3rciful/signupbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the chain every update passes through, outermost
// first: panic recovery, the per-user rate limit (when configured), update
// logging and per-chat serialization.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if limit := rateLimit(cfg, onLimited); limit != nil {
		chain = append(chain, Middleware{Name: "rate_limit", Use: limit})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "serialize", Use: middleware.SerializeByChat(middleware.NewKeyedQueue())},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) tele.MiddlewareFunc {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:   exclude,
		OnLimited: onLimited,
	})
}
