package logger

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// botTokenRe matches Bot API tokens embedded in request URLs of telebot errors.
var botTokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// contextHandler appends the Fields of the context to every record.
type contextHandler struct {
	slog.Handler
}

func newHandler(w io.Writer, format string, lvl slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: rewriteAttr}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return contextHandler{slog.NewTextHandler(w, opts)}
	}
	return contextHandler{slog.NewJSONHandler(w, opts)}
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if extra := FieldsFrom(ctx).attrs(); len(extra) > 0 {
		r = r.Clone()
		r.AddAttrs(extra...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// rewriteAttr renames the built-in keys, reports durations in milliseconds
// and masks the credentials a sign-up turn may carry.
func rewriteAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey:
			return slog.String("ts", a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
		case slog.MessageKey:
			return slog.Attr{Key: "event", Value: a.Value}
		}
	}
	switch a.Key {
	case "password":
		return slog.String(a.Key, "[redacted]")
	case "phone":
		return slog.String(a.Key, maskPhone(a.Value.String()))
	case "err":
		return slog.String(a.Key, Redact(a.Value.String()))
	}
	switch a.Value.Kind() {
	case slog.KindDuration:
		return slog.Int64(msKey(a.Key), RoundMS(a.Value.Duration()).Milliseconds())
	case slog.KindString:
		if a.Value.String() == "" {
			return slog.Attr{}
		}
	}
	return a
}

func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

// Redact hides Bot API tokens, which telebot errors carry inside request URLs.
func Redact(s string) string {
	return botTokenRe.ReplaceAllString(s, "bot<redacted>")
}

// maskPhone keeps the last four digits of a phone number.
func maskPhone(phone string) string {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 4 {
		return strings.Repeat("*", digits)
	}
	var b strings.Builder
	seen := 0
	for _, r := range phone {
		if r < '0' || r > '9' {
			continue
		}
		seen++
		if seen <= digits-4 {
			b.WriteByte('*')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RoundMS rounds d to whole milliseconds.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}
