package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	key, payload := Parse(&tele.Callback{Data: "\fdel|3:1"})
	assert.Equal(t, "del", key)
	assert.Equal(t, "3:1", payload)

	key, payload = Parse(&tele.Callback{Data: "\fnewcat"})
	assert.Equal(t, "newcat", key)
	assert.Empty(t, payload)

	key, payload = Parse(&tele.Callback{Unique: "freq", Data: "2:1w"})
	assert.Equal(t, "freq", key)
	assert.Equal(t, "2:1w", payload)

	key, payload = Parse(nil)
	assert.Empty(t, key)
	assert.Empty(t, payload)
}
