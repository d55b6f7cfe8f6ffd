package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/signupbot/core/logger"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// summarize runs h as the handler called name and logs one handler.handled
// line with the outcome and the number of messages it queued. A nil h is
// logged as skipped.
func summarize(c tele.Context, name string, h tele.HandlerFunc) error {
	start := time.Now()
	ctx := tghelpers.Annotate(c, logger.Fields{Handler: name})

	status := "skip"
	var err error
	if h != nil {
		err = h(c)
		status = logger.Status(err)
	}
	msgs, kb := tghelpers.Queued(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.Clip(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
		logger.Warn(ctx, "tg", "handler.handled", attrs...)
		return err
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
	return nil
}

// handlerName turns a command or route label into a log-friendly name.
func handlerName(label string) string {
	label = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(label), "/"))
	if label == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(label, " ", "_"))
}

// errorCode prefers an explicit Code() and falls back to the error type name.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	name := fmt.Sprintf("%T", err)
	return strings.ToUpper(name[strings.LastIndexByte(name, '.')+1:])
}
