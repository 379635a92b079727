package netutil

import (
	"errors"
	"net"
	"time"

	tele "gopkg.in/telebot.v4"
)

// maxFloodWait caps how long a single retry honours Telegram's retry_after.
const maxFloodWait = 30 * time.Second

// ShouldRetry reports whether a failed Bot API call is worth repeating.
// Flood control, 5xx answers, dial failures and timeouts qualify.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := floodWait(err); ok {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// RetryDelay is the pause before the next attempt: Telegram's retry_after
// for flood errors, capped at maxFloodWait, otherwise fallback.
func RetryDelay(err error, fallback time.Duration) time.Duration {
	if wait, ok := floodWait(err); ok && wait > 0 {
		return min(wait, maxFloodWait)
	}
	return fallback
}

func floodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	return time.Duration(flood.RetryAfter) * time.Second, true
}
