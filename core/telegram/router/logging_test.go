package router

import (
	"errors"
	"fmt"
	"testing"

	tg "github.com/m3rciful/signupbot/core/telegram"
	"github.com/m3rciful/signupbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type codedError struct{}

func (codedError) Error() string { return "coded" }
func (codedError) Code() string  { return "rate limited" }

type plainError struct{}

func (*plainError) Error() string { return "plain" }

type textContext struct {
	tele.Context
	text  string
	store map[string]any
}

func newTextContext(text string) *textContext {
	return &textContext{text: text, store: map[string]any{}}
}

func (c *textContext) Text() string              { return c.text }
func (c *textContext) Update() tele.Update       { return tele.Update{ID: 2} }
func (c *textContext) Chat() *tele.Chat          { return &tele.Chat{ID: 4} }
func (c *textContext) Sender() *tele.User        { return &tele.User{ID: 4} }
func (c *textContext) Get(key string) any        { return c.store[key] }
func (c *textContext) Set(key string, value any) { c.store[key] = value }

func TestHandlerName(t *testing.T) {
	tests := map[string]string{
		"/Start":  "start",
		"  ":      "unknown",
		"/lang x": "lang_x",
		"contact": "contact",
	}
	for in, want := range tests {
		if got := handlerName(in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: codedError{}, want: "RATE_LIMITED"},
		{err: fmt.Errorf("wrapped: %w", codedError{}), want: "RATE_LIMITED"},
		{err: &plainError{}, want: "PLAINERROR"},
		{err: errors.New("x"), want: "ERRORSTRING"},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMessageRoutesPreferCommands(t *testing.T) {
	reg := tg.NewRegistry()
	var ran []string
	reg.RegisterCommand("/lang", commands.Command{Description: "language", Handler: func(c tele.Context) error {
		ran = append(ran, "lang")
		return nil
	}})
	routes := MessageRoutes(reg, MessageHandlers{Text: func(c tele.Context) error {
		ran = append(ran, "text")
		return nil
	}})

	var onText tele.HandlerFunc
	for _, r := range routes {
		if r.Endpoint == tele.OnText {
			onText = r.Handler
		}
	}
	for _, in := range []string{"/lang@signup_bot", "lang", "Ivanov Ivan Ivanovich"} {
		c := newTextContext(in)
		if err := onText(c); err != nil {
			t.Fatal(err)
		}
	}
	if len(ran) != 3 || ran[0] != "lang" || ran[1] != "text" || ran[2] != "text" {
		t.Fatalf("ran = %v", ran)
	}
}

func TestSummarizeAnnotatesHandler(t *testing.T) {
	c := newTextContext("")
	want := errors.New("boom")
	err := summarize(c, "sign", func(c tele.Context) error {
		if got := tghelpers.Context(c); got == nil {
			t.Fatal("missing context")
		}
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if err := summarize(c, "contact", nil); err != nil {
		t.Fatalf("skipped handler returned %v", err)
	}
}
