package middleware

import (
	"log/slog"

	"github.com/m3rciful/signupbot/core/logger"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware opens the logging context of the update and logs its receipt.
// Only command text is logged; typed names, logins, passwords and shared
// phone numbers stay out of the log.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.Context(c)
		upd := c.Update()

		attrs := []slog.Attr{slog.String("kind", UpdateKind(upd))}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if u := c.Sender(); u != nil && u.LanguageCode != "" {
			attrs = append(attrs, slog.String("locale", u.LanguageCode))
		}
		if m := upd.Message; m != nil && isCommand(m) {
			attrs = append(attrs, slog.String("command", logger.Clip(m.Text, 32)))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}

func isCommand(m *tele.Message) bool {
	if m.Contact != nil || len(m.Entities) == 0 {
		return false
	}
	e := m.Entities[0]
	return e.Type == tele.EntityCommand && e.Offset == 0
}
