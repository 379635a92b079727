package router

import (
	tg "github.com/m3rciful/taskbot/core/telegram"
	"github.com/m3rciful/taskbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation engine that owns free text while a flow is active.
type FSM interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions sets the handlers for text and documents nobody claims.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds the OnText and OnDocument routes. Text goes to the
// active flow first, then to the registry's text fallback, then to
// opts.UnknownText.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if fsm != nil && c.Sender() != nil && fsm.InProgress(c.Sender().ID) {
			return run(c, "fsm", func() error { return fsm.HandleText(c) })
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return run(c, "fallback", func() error { return fb(c) })
			}
		}
		return orSkip(c, "unknown_text", opts.UnknownText)
	}

	document := func(c tele.Context) error {
		return orSkip(c, "unexpected_document", opts.UnknownDocument)
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}

func orSkip(c tele.Context, name string, h tele.HandlerFunc) error {
	if h == nil {
		skip(c, name)
		return nil
	}
	return run(c, name, func() error { return h(c) })
}
