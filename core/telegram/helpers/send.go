package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/m3rciful/signupbot/core/logger"
	"github.com/m3rciful/signupbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// enqueueWait bounds how long an update waits for room in its chat's send queue.
const enqueueWait = 10 * time.Second

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes SendBatch through d. With nil, batches are sent inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// Outgoing is one message of a batch.
type Outgoing struct {
	Text   string
	Markup *tele.ReplyMarkup
}

// SendBatch delivers msgs to the chat of c in order, as a single job.
// A retried job resumes after the last delivered message. When the chat's
// queue stays full the batch is dropped with an error rather than sent ahead
// of messages still waiting in it.
func SendBatch(c tele.Context, msgs []Outgoing) error {
	if len(msgs) == 0 {
		return nil
	}
	delivered := 0
	send := func() error {
		for ; delivered < len(msgs); delivered++ {
			m := msgs[delivered]
			opts := []interface{}{}
			if m.Markup != nil {
				opts = append(opts, m.Markup)
			}
			if err := c.Send(m.Text, opts...); err != nil {
				return err
			}
		}
		return nil
	}

	d := dispatcher.Load()
	if d == nil {
		noteQueued(c, msgs)
		return send()
	}

	ctx := Context(c)
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	waitCtx, cancel := context.WithTimeout(ctx, enqueueWait)
	defer cancel()
	if err := d.Enqueue(waitCtx, sender.Job{ChatID: chatID, Action: "send.batch", Send: send}); err != nil {
		logger.Warn(ctx, "tg.sender", "send.dropped",
			slog.Int("messages", len(msgs)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("send batch: %w", err)
	}
	noteQueued(c, msgs)
	return nil
}
