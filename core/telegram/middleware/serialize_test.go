package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedQueueSerializesSameKey(t *testing.T) {
	q := NewKeyedQueue()

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Run(context.Background(), 42, func(context.Context) error {
				n := active.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Fatalf("same key ran concurrently: %d", maxSeen.Load())
	}
	if q.Len() != 0 {
		t.Fatalf("queue not drained: %d keys left", q.Len())
	}
}

func TestKeyedQueueRunsDifferentKeysConcurrently(t *testing.T) {
	q := NewKeyedQueue()
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = q.Run(context.Background(), 1, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		_ = q.Run(context.Background(), 2, func(context.Context) error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different key was blocked")
	}
	close(release)
}

func TestKeyedQueueWaitHonoursContext(t *testing.T) {
	q := NewKeyedQueue()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = q.Run(context.Background(), 7, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Run(ctx, 7, func(context.Context) error {
		t.Error("must not run after the wait was abandoned")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	close(release)
	if err := q.Run(context.Background(), 7, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("queue stuck after abandoned wait: %v", err)
	}
}
