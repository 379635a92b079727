package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// dataPrefix starts every callback data string built by telebot's markup.Data.
const dataPrefix = "\f"

// ParseCallbackData parses telebot's "\f<unique>|<payload>" encoding.
// Returns unique and payload (may be empty).
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, dataPrefix)
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// Parse returns the callback key and payload. cb.Unique wins when telebot
// already matched a registered button.
func Parse(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return ParseCallbackData(cb)
}
