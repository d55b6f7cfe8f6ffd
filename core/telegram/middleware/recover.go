package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/signupbot/core/logger"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into an error so one broken turn
// does not take the poller down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("handler panic: %v", r)
			logger.Error(tghelpers.Context(c), "tg", "tg.panic",
				slog.String("err", err.Error()),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
