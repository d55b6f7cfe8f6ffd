package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherKeepsOrderPerChat(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 32})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := range 20 {
		for _, chat := range []int64{1, 2, -100} {
			err := d.Enqueue(context.Background(), Job{ChatID: chat, Action: "send.text", Send: func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			}})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for chat, seq := range got {
		if len(seq) != 20 {
			t.Fatalf("chat %d: got %d jobs", chat, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("chat %d: out of order %v", chat, seq)
			}
		}
	}
}

func TestDispatcherWaitsForSlotInsteadOfSkippingAhead(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})

	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	if err := d.Enqueue(context.Background(), Job{ChatID: 5, Send: func() error {
		close(started)
		<-release
		record("first")
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := d.Enqueue(context.Background(), Job{ChatID: 5, Send: func() error {
		record("second")
		return nil
	}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Enqueue(ctx, Job{ChatID: 5, Send: func() error {
		record("third")
		return nil
	}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	close(release)
	d.Close()
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	calls := 0
	if err := d.Enqueue(context.Background(), Job{ChatID: 1, Send: func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	d.Close()

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("error count = %d", d.ErrorCount())
	}
}

func TestDispatcherCountsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	calls := 0
	_ = d.Enqueue(context.Background(), Job{ChatID: 1, Send: func() error {
		calls++
		return &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	}})
	d.Close()

	if calls != 1 {
		t.Fatalf("permanent error retried %d times", calls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), Job{ChatID: 1, Send: func() error { return nil }})
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	if err := d.Enqueue(context.Background(), Job{ChatID: 1}); err == nil {
		t.Fatal("expected error for a job without send function")
	}
}

func TestBackoff(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, RetryBackoff: 100 * time.Millisecond})
	defer d.Close()

	if got := d.backoff(3, errors.New("x")); got != 400*time.Millisecond {
		t.Fatalf("backoff = %v", got)
	}
	if got := d.backoff(1, tele.FloodError{RetryAfter: 7}); got != 7*time.Second {
		t.Fatalf("flood backoff = %v", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "flood", err: tele.FloodError{RetryAfter: 3}, want: "flood"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "dial", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: "network"},
		{name: "server", err: &tele.Error{Code: 502}, want: "telegram_5xx"},
		{name: "client", err: &tele.Error{Code: 403}, want: "telegram_4xx"},
		{name: "other", err: errors.New("boom"), want: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Fatalf("classify = %q, want %q", got, tt.want)
			}
		})
	}
}
