package helpers

import (
	"context"

	"github.com/m3rciful/signupbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey      = "signup.ctx"
	queuedKey   = "signup.queued"
	keyboardKey = "signup.keyboard"
)

// Context returns the logging context of the update behind c. The first call
// derives it from the update, chat and sender ids; later calls reuse it.
func Context(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	f := logger.Fields{UpdateID: c.Update().ID}
	if chat := c.Chat(); chat != nil {
		f.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		f.UserID = u.ID
	}
	ctx := logger.WithFields(context.Background(), f)
	c.Set(ctxKey, ctx)
	return ctx
}

// Annotate adds f to the update's logging context and returns the result.
func Annotate(c tele.Context, f logger.Fields) context.Context {
	ctx := logger.WithFields(Context(c), f)
	c.Set(ctxKey, ctx)
	return ctx
}

// Queued reports how many messages the update handed to the sender and
// whether any of them carried a keyboard.
func Queued(c tele.Context) (messages int, keyboard bool) {
	messages, _ = c.Get(queuedKey).(int)
	keyboard, _ = c.Get(keyboardKey).(bool)
	return messages, keyboard
}

func noteQueued(c tele.Context, msgs []Outgoing) {
	n, kb := Queued(c)
	for _, m := range msgs {
		if m.Markup != nil {
			kb = true
		}
	}
	c.Set(queuedKey, n+len(msgs))
	c.Set(keyboardKey, kb)
}
