// Package sender delivers outbound Telegram calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/signupbot/core/logger"
	"github.com/m3rciful/signupbot/core/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

// ErrQueueClosed is returned by Enqueue once Close has been called.
var ErrQueueClosed = errors.New("telegram sender: queue closed")

// Job is one outbound call. Send is called again on a retryable failure.
type Job struct {
	// ChatID picks the worker; jobs of one chat are delivered in Enqueue order.
	ChatID int64
	Action string
	Send   func() error
}

// Options tunes the dispatcher. Zero values pick the defaults.
type Options struct {
	Workers int
	// QueueSize is the capacity of each worker queue.
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds all attempts of a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 15 * time.Second
	}
	return o
}

type envelope struct {
	ctx      context.Context
	job      Job
	enqueued time.Time
}

// Dispatcher runs jobs on a fixed set of workers, one queue per worker.
type Dispatcher struct {
	opts   Options
	shards []chan envelope

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, shards: make([]chan envelope, opts.Workers)}
	d.wg.Add(len(d.shards))
	for i := range d.shards {
		d.shards[i] = make(chan envelope, opts.QueueSize)
		go d.work(d.shards[i])
	}
	return d
}

// Enqueue hands j to the worker of its chat. When that queue is full it waits
// for a free slot until ctx is done; a job is never run out of turn.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Send == nil {
		return errors.New("telegram sender: job without send function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	env := envelope{ctx: context.WithoutCancel(ctx), job: j, enqueued: time.Now()}
	select {
	case d.shard(j.ChatID) <- env:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram sender: waiting for queue slot: %w", ctx.Err())
	}
}

func (d *Dispatcher) shard(chatID int64) chan envelope {
	return d.shards[uint64(chatID)%uint64(len(d.shards))]
}

// ErrorCount returns how many jobs failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs and waits until the queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, s := range d.shards {
		close(s)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(queue <-chan envelope) {
	defer d.wg.Done()
	for env := range queue {
		d.deliver(env)
	}
}

func (d *Dispatcher) deliver(env envelope) {
	ctx, cancel := context.WithTimeout(env.ctx, d.opts.MaxDuration)
	defer cancel()

	attrs := []slog.Attr{
		slog.String("action", env.job.Action),
		slog.Duration("queued", time.Since(env.enqueued)),
	}
	start := time.Now()
	attempt := 0
	var err error
	for {
		attempt++
		if err = env.job.Send(); err == nil {
			attrs = append(attrs, slog.Int("attempts", attempt), slog.Duration("duration", time.Since(start)))
			if attempt > 1 {
				logger.Info(ctx, component, "send.retry.success", attrs...)
			} else {
				logger.Debug(ctx, component, "send.ok", attrs...)
			}
			return
		}
		if attempt > d.opts.MaxRetries || !retryable(err) {
			break
		}
		if !pause(ctx, d.backoff(attempt, err)) {
			err = fmt.Errorf("%w after: %v", ctx.Err(), err)
			break
		}
	}

	d.failed.Add(1)
	logger.Error(ctx, component, "send.fail", append(attrs,
		slog.Int("attempts", attempt),
		slog.Duration("duration", time.Since(start)),
		slog.String("err_kind", classify(err)),
		slog.String("err", err.Error()),
	)...)
}

// backoff honours Telegram's retry_after on flood control and doubles otherwise.
func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return d.opts.RetryBackoff << (attempt - 1)
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func retryable(err error) bool {
	var flood tele.FloodError
	return errors.As(err, &flood) || netutil.ShouldRetry(err)
}

// classify names the failure for the send.fail line.
func classify(err error) string {
	var (
		flood  tele.FloodError
		apiErr *tele.Error
		netErr net.Error
	)
	switch {
	case errors.As(err, &flood):
		return "flood"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &apiErr) && apiErr.Code >= 500:
		return "telegram_5xx"
	case errors.As(err, &apiErr):
		return "telegram_4xx"
	case netutil.ShouldRetry(err):
		return "network"
	}
	return "other"
}
