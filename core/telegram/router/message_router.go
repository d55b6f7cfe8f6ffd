package router

import (
	"strings"

	"github.com/m3rciful/signupbot/core/telegram/commands"
	tg "github.com/m3rciful/signupbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// MessageHandlers lists the handlers for non-command messages.
// A nil handler leaves the update unanswered and logs it as skipped.
type MessageHandlers struct {
	Text    tele.HandlerFunc
	Contact tele.HandlerFunc
}

// MessageRoutes builds the text and contact routes. Text matching a
// registered command or alias, such as "/lang@mybot", runs that command.
func MessageRoutes(reg *tg.Registry, h MessageHandlers) []tg.Route {
	text := func(c tele.Context) error {
		if name, cmd, ok := lookupText(reg, c.Text()); ok {
			return summarize(c, handlerName(name), cmd.Handler)
		}
		return summarize(c, "text", h.Text)
	}
	contact := func(c tele.Context) error {
		return summarize(c, "contact", h.Contact)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnContact, Handler: contact},
	}
}

// lookupText resolves slash-prefixed text to a registered command.
func lookupText(reg *tg.Registry, text string) (string, commands.Command, bool) {
	fields := strings.Fields(text)
	if reg == nil || len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", commands.Command{}, false
	}
	word, _, _ := strings.Cut(fields[0], "@")
	name, cmd, ok := reg.LookupCommand(word)
	return name, cmd, ok && cmd.Handler != nil
}
