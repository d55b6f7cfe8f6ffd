package telegram

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/m3rciful/signupbot/core/logger"
	"github.com/m3rciful/signupbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry maps slash commands and their aliases to handlers.
type Registry struct {
	commands map[string]commands.Command
	aliases  map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: map[string]commands.Command{},
		aliases:  map[string]string{},
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
// It reports false and logs the reason when cmd lacks a handler or a
// description, or when name is already taken.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) bool {
	var reason string
	switch {
	case !strings.HasPrefix(name, "/"):
		reason = "no_slash_prefix"
	case cmd.Handler == nil || cmd.Description == "":
		reason = "incomplete"
	case r.taken(name):
		reason = "duplicate"
	}
	if reason != "" {
		logger.Warn(context.Background(), "tg.wire", "command.rejected",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return false
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		if alias = slash(alias); alias != "/" && !r.taken(alias) {
			r.aliases[alias] = name
		}
	}
	return true
}

// ListCommands returns commands sorted by name. Hidden ones are left out when visibleOnly is set.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for name, cmd := range r.commands {
		if !visibleOnly || !cmd.Hidden {
			list = append(list, tele.Command{Text: name, Description: cmd.Description})
		}
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves a command name or alias, with or without the
// slash, to its registered name.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	name = slash(name)
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	if key, ok := r.aliases[name]; ok {
		return key, r.commands[key], true
	}
	return "", commands.Command{}, false
}

// Commands returns all registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

func (r *Registry) taken(name string) bool {
	_, cmd := r.commands[name]
	_, alias := r.aliases[name]
	return cmd || alias
}

func slash(name string) string {
	return "/" + strings.TrimPrefix(strings.TrimSpace(name), "/")
}

// CommandSetter publishes the command menu; *tele.Bot implements it.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the visible commands as the bot menu. Menu
// entries are sent without the leading slash.
func SetupCommands(bot CommandSetter, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	menu := reg.ListCommands(true)
	for i := range menu {
		menu[i].Text = menu[i].Text[1:]
	}
	if err := bot.SetCommands(menu); err != nil {
		logger.Error(context.Background(), "tg.wire", "command.menu",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
