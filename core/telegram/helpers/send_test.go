package helpers

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/signupbot/core/logger"
	"github.com/m3rciful/signupbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

type recordingContext struct {
	tele.Context
	mu    sync.Mutex
	store map[string]any
	sent  []string
	fail  map[string]int
}

func newRecordingContext() *recordingContext {
	return &recordingContext{store: map[string]any{}, fail: map[string]int{}}
}

func (r *recordingContext) Update() tele.Update       { return tele.Update{ID: 3} }
func (r *recordingContext) Chat() *tele.Chat          { return &tele.Chat{ID: 11} }
func (r *recordingContext) Sender() *tele.User        { return &tele.User{ID: 12} }
func (r *recordingContext) Get(key string) any        { return r.store[key] }
func (r *recordingContext) Set(key string, value any) { r.store[key] = value }

func (r *recordingContext) Send(what interface{}, _ ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	text := what.(string)
	if r.fail[text] > 0 {
		r.fail[text]--
		return &net.OpError{Op: "dial", Err: errors.New("connection reset")}
	}
	r.sent = append(r.sent, text)
	return nil
}

func useDispatcher(t *testing.T, d *sender.Dispatcher) {
	t.Helper()
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })
}

func TestContextCarriesUpdateFields(t *testing.T) {
	c := newRecordingContext()
	ctx := Annotate(c, logger.Fields{Handler: "sign"})

	f := logger.FieldsFrom(ctx)
	if f.UpdateID != 3 || f.ChatID != 11 || f.UserID != 12 || f.Handler != "sign" {
		t.Fatalf("unexpected fields %+v", f)
	}
	if logger.FieldsFrom(Context(c)).Handler != "sign" {
		t.Fatal("annotation not kept on the update")
	}
}

func TestSendBatchInline(t *testing.T) {
	c := newRecordingContext()
	err := SendBatch(c, []Outgoing{{Text: "a"}, {Text: "b", Markup: &tele.ReplyMarkup{RemoveKeyboard: true}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.sent) != 2 || c.sent[0] != "a" || c.sent[1] != "b" {
		t.Fatalf("sent = %v", c.sent)
	}
	if n, kb := Queued(c); n != 2 || !kb {
		t.Fatalf("queued = %d, %v", n, kb)
	}
}

func TestSendBatchResumesAfterDeliveredMessages(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	useDispatcher(t, d)

	c := newRecordingContext()
	c.fail["b"] = 1
	if err := SendBatch(c, []Outgoing{{Text: "a"}, {Text: "b"}, {Text: "c"}}); err != nil {
		t.Fatal(err)
	}
	d.Close()

	if len(c.sent) != 3 || c.sent[0] != "a" || c.sent[1] != "b" || c.sent[2] != "c" {
		t.Fatalf("sent = %v", c.sent)
	}
}

func TestSendBatchNeverSendsInlineWhenQueued(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	d.Close()
	useDispatcher(t, d)

	c := newRecordingContext()
	err := SendBatch(c, []Outgoing{{Text: "late"}})
	if !errors.Is(err, sender.ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("batch sent out of turn: %v", c.sent)
	}
	if n, _ := Queued(c); n != 0 {
		t.Fatalf("queued = %d", n)
	}
}
