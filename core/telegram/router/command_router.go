package router

import (
	"strings"

	tg "github.com/m3rciful/signupbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes returns one route per registered command and alias.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	var routes []tg.Route
	for name, cmd := range reg.Commands() {
		h := named(handlerName(name), cmd.Handler)
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
		for _, alias := range cmd.Aliases {
			if alias = strings.TrimSpace(alias); alias == "" {
				continue
			}
			routes = append(routes, tg.Route{Endpoint: "/" + strings.TrimPrefix(alias, "/"), Handler: h})
		}
	}
	return routes
}

func named(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return summarize(c, name, h)
	}
}
