package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider supplies the replies for updates no command, flow or
// callback handler claims.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Fallbacks is a FallbackProvider built from plain reply texts.
type Fallbacks struct {
	Text     string
	Document string
	Callback string
}

// UnknownText replies with f.Text, or ignores the update when empty.
func (f Fallbacks) UnknownText() tele.HandlerFunc { return reply(f.Text) }

// UnknownDocument replies with f.Document, or ignores the update when empty.
func (f Fallbacks) UnknownDocument() tele.HandlerFunc { return reply(f.Document) }

// UnknownCallback answers the button press with a toast.
func (f Fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		if f.Callback == "" {
			return c.Respond()
		}
		return c.Respond(&tele.CallbackResponse{Text: f.Callback})
	}
}

func reply(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		if text == "" {
			return nil
		}
		return c.Send(text)
	}
}
