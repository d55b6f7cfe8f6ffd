// Package transport binds the signup conversation to Telegram updates.
package transport

import (
	"context"
	"log/slog"

	"github.com/m3rciful/signupbot/app/signup"
	"github.com/m3rciful/signupbot/core/logger"
	tg "github.com/m3rciful/signupbot/core/telegram"
	"github.com/m3rciful/signupbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/signupbot/core/telegram/helpers"
	"github.com/m3rciful/signupbot/core/telegram/keyboard"
	"github.com/m3rciful/signupbot/core/telegram/router"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the controller surface driven by Telegram updates.
type Conversation interface {
	Command(ctx context.Context, name string, msg signup.Message) ([]signup.Reply, error)
	Text(ctx context.Context, msg signup.Message) ([]signup.Reply, error)
	Contact(ctx context.Context, msg signup.Message) ([]signup.Reply, error)
	Language(ctx context.Context, msg signup.Message) ([]signup.Reply, error)
}

var descriptions = map[string]string{
	signup.CmdStart:  "Check your account",
	signup.CmdSign:   "Create an account",
	signup.CmdLang:   "Change language",
	signup.CmdCancel: "Cancel registration",
}

// Adapter turns Telegram updates into conversation events and sends the replies back.
type Adapter struct {
	conv Conversation
	send func(c tele.Context, msgs []tghelpers.Outgoing) error
}

// New returns an adapter that sends replies through the shared dispatcher.
func New(conv Conversation) *Adapter {
	return &Adapter{conv: conv, send: tghelpers.SendBatch}
}

// Register adds the conversation commands to reg.
func (a *Adapter) Register(reg *tg.Registry) {
	for _, name := range []string{signup.CmdStart, signup.CmdSign, signup.CmdLang, signup.CmdCancel} {
		reg.RegisterCommand(name, commands.Command{
			Description: descriptions[name],
			Handler: func(c tele.Context) error {
				return a.handleCommand(c, name)
			},
		})
	}
}

// Routes returns the command, text and contact routes for the bot.
func (a *Adapter) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg)
	return append(routes, router.MessageRoutes(reg, router.MessageHandlers{
		Text:    a.handleText,
		Contact: a.handleContact,
	})...)
}

func (a *Adapter) handleCommand(c tele.Context, name string) error {
	ctx := tghelpers.Context(c)
	replies, err := a.conv.Command(ctx, name, messageFrom(c))
	return a.reply(ctx, c, replies, err)
}

func (a *Adapter) handleText(c tele.Context) error {
	ctx := tghelpers.Context(c)
	msg := messageFrom(c)
	var (
		replies []signup.Reply
		err     error
	)
	if signup.IsLanguageLabel(msg.Text) {
		replies, err = a.conv.Language(ctx, msg)
	} else {
		replies, err = a.conv.Text(ctx, msg)
	}
	return a.reply(ctx, c, replies, err)
}

func (a *Adapter) handleContact(c tele.Context) error {
	ctx := tghelpers.Context(c)
	replies, err := a.conv.Contact(ctx, messageFrom(c))
	return a.reply(ctx, c, replies, err)
}

// reply sends whatever the turn produced, even when it also failed.
func (a *Adapter) reply(ctx context.Context, c tele.Context, replies []signup.Reply, turnErr error) error {
	if turnErr != nil {
		logger.Warn(ctx, "tg", "signup.turn.fail",
			slog.String("status", "fail"),
			slog.Int("messages", len(replies)),
			slog.String("err", turnErr.Error()),
		)
	}
	if len(replies) == 0 {
		return turnErr
	}
	out := make([]tghelpers.Outgoing, 0, len(replies))
	for _, r := range replies {
		out = append(out, tghelpers.Outgoing{Text: r.Text, Markup: Markup(r.Keyboard)})
	}
	if err := a.send(c, out); err != nil {
		return err
	}
	return turnErr
}

func messageFrom(c tele.Context) signup.Message {
	var msg signup.Message
	if chat := c.Chat(); chat != nil {
		msg.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		msg.SenderID = u.ID
		msg.LocaleHint = u.LanguageCode
	}
	if m := c.Message(); m != nil {
		msg.Text = m.Text
		if ct := m.Contact; ct != nil {
			msg.Contact = &signup.Contact{UserID: ct.UserID, Phone: ct.PhoneNumber}
		}
	}
	return msg
}

// Markup converts a conversation keyboard into Telegram reply markup.
func Markup(kb *signup.Keyboard) *tele.ReplyMarkup {
	if kb == nil {
		return nil
	}
	if kb.Remove {
		return keyboard.RemoveKeyboard()
	}
	var markup *tele.ReplyMarkup
	if kb.RequestContact && len(kb.Rows) > 0 && len(kb.Rows[0]) > 0 {
		markup = keyboard.ContactButton(kb.Rows[0][0])
	} else {
		markup = keyboard.ReplyButtons(kb.Rows...)
	}
	if kb.OneTime {
		keyboard.OneTime(markup)
	}
	return markup
}
