package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/signupbot/core/logger"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude holds update kinds (see UpdateKind) that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type userGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
}

// admit records now for user and reports whether the previous update was long enough ago.
func (g *userGate) admit(user int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[user]; ok && now.Sub(prev) < g.interval {
		return false
	}
	g.last[user] = now
	if len(g.last) > 4096 {
		for id, t := range g.last {
			if now.Sub(t) >= g.interval {
				delete(g.last, id)
			}
		}
	}
	return true
}

// RateLimitMiddleware drops updates that follow the same user's previous one too closely.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	gate := &userGate{interval: opts.Interval, last: map[int64]time.Time{}}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if gate.admit(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.Context(c), "tg", "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}

// UpdateKind classifies an update as "contact", "message" or "other".
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Message == nil:
		return "other"
	case upd.Message.Contact != nil:
		return "contact"
	}
	return "message"
}
