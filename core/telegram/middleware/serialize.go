package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/signupbot/core/logger"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// KeyedQueue runs functions sharing a key one at a time, in arrival order.
// Functions with different keys run concurrently.
type KeyedQueue struct {
	mu     sync.Mutex
	chains map[int64]chan struct{}
}

// NewKeyedQueue returns an empty queue.
func NewKeyedQueue() *KeyedQueue {
	return &KeyedQueue{chains: map[int64]chan struct{}{}}
}

// Run waits for the previous function with the same key and then calls fn.
// It gives up with ctx.Err() if ctx is done while waiting.
func (q *KeyedQueue) Run(ctx context.Context, key int64, fn func(context.Context) error) error {
	q.mu.Lock()
	previous := q.chains[key]
	next := make(chan struct{})
	q.chains[key] = next
	q.mu.Unlock()

	if previous != nil {
		select {
		case <-previous:
		case <-ctx.Done():
			// Keep the chain intact for whoever queued behind us.
			go func() {
				<-previous
				q.release(key, next)
			}()
			return ctx.Err()
		}
	}

	defer q.release(key, next)
	return fn(ctx)
}

func (q *KeyedQueue) release(key int64, done chan struct{}) {
	close(done)
	q.mu.Lock()
	if q.chains[key] == done {
		delete(q.chains, key)
	}
	q.mu.Unlock()
}

// Len reports how many keys currently have a running or waiting function.
func (q *KeyedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chains)
}

// SerializeByChat makes updates of the same chat run one at a time so that
// session reads and writes of a turn never interleave.
func SerializeByChat(q *KeyedQueue) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil {
				return next(c)
			}
			ctx := tghelpers.Context(c)
			queued := time.Now()
			return q.Run(ctx, chat.ID, func(ctx context.Context) error {
				if wait := time.Since(queued); wait > time.Second {
						logger.Debug(ctx, "tg", "update.serialized", slog.Duration("wait", logger.RoundMS(wait)))
				}
				return next(c)
			})
		}
	}
}
