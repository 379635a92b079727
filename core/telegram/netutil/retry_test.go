package netutil

import (
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.True(t, ShouldRetry(dial))
	assert.True(t, ShouldRetry(&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}))
	assert.True(t, ShouldRetry(tele.FloodError{RetryAfter: 3}))
	assert.True(t, ShouldRetry(&tele.Error{Code: 502, Description: "Bad Gateway"}))

	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(tele.ErrBlockedByUser))
	assert.False(t, ShouldRetry(errors.New("plain")))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 3*time.Second, RetryDelay(tele.FloodError{RetryAfter: 3}, time.Second))
	assert.Equal(t, maxFloodWait, RetryDelay(tele.FloodError{RetryAfter: 600}, time.Second))
	assert.Equal(t, time.Second, RetryDelay(errors.New("x"), time.Second))
}
