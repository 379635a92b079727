package router

import (
	"log/slog"

	tg "github.com/m3rciful/taskbot/core/telegram"
	"github.com/m3rciful/taskbot/core/telegram/callbacks"
	"github.com/m3rciful/taskbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound runs when neither the registry nor its fallback knows the key.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the OnCallback route. Presses are dispatched by
// callback key; the spinner is stopped before the handler runs.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	dispatch := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.Parse(cb)
		keyAttr := slog.String("cb_key", key)
		_ = c.Respond()

		if h, ok := reg.GetCallback(key); ok {
			return run(c, "callback."+handlerName(key), func() error { return h(c) }, keyAttr)
		}

		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		if fallback == nil {
			skip(c, "callback.unknown")
			return nil
		}
		return run(c, "callback.unknown", func() error { return fallback(c) },
			keyAttr, slog.String("reason", "not_found"))
	}

	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(dispatch)),
	}
}
