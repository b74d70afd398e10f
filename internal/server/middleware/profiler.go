package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/alexcesaro/statsd.v2"
)

type ProfilerConfig struct {
	Skipper Skipper
	// Address of the statsd agent, ":8125" when empty.
	Address string
	Service string
	// Client overrides Address, mostly for tests.
	Client *statsd.Client
}

// ProfilerWithConfig sends one timing per request, named
// response.<service>.<method>.<route>.<status>.
func ProfilerWithConfig(conf ProfilerConfig) (echo.MiddlewareFunc, error) {
	if conf.Skipper == nil {
		conf.Skipper = DefaultSkipper
	}
	if conf.Address == "" {
		conf.Address = ":8125"
	}
	if conf.Service == "" {
		conf.Service = "crm-console"
	}
	client := conf.Client
	if client == nil {
		var err error
		client, err = statsd.New(statsd.Address(conf.Address), statsd.ErrorHandler(func(error) {}))
		if err != nil {
			return nil, err
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if conf.Skipper(c) {
				return next(c)
			}
			timing := client.NewTiming()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			timing.Send(timingName(conf.Service, c.Request().Method, c.Path(), c.Response().Status))
			return err
		}
	}, nil
}

// timingName turns "/api/v1/chats/:chat_id" into "api_v1_chats_chat_id"
// so route separators do not split the statsd bucket.
func timingName(service, method, route string, status int) string {
	route = strings.Trim(route, "/")
	route = strings.NewReplacer("/", "_", ":", "", "*", "any", ".", "_").Replace(route)
	if route == "" {
		route = "root"
	}
	return strings.ToLower("response." + service + "." + method + "." + route + "." + strconv.Itoa(status))
}
