package telegram

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyTripper struct {
	failures int
	calls    int
	bodies   []string
}

func (f *flakyTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		var sb strings.Builder
		buf := make([]byte, 64)
		n, _ := req.Body.Read(buf)
		sb.Write(buf[:n])
		f.bodies = append(f.bodies, sb.String())
	}
	if f.calls <= f.failures {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestRetryTransportReplaysBody(t *testing.T) {
	next := &flakyTripper{failures: 2}
	rt := &retryTransport{next: next, retries: 3, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("chat_id=1"))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, []string{"chat_id=1", "chat_id=1", "chat_id=1"}, next.bodies)
}

func TestRetryTransportGivesUp(t *testing.T) {
	next := &flakyTripper{failures: 10}
	rt := &retryTransport{next: next, retries: 1, backoff: time.Millisecond}

	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestHTTPOptionsDefaults(t *testing.T) {
	o := HTTPOptions{}.withDefaults()
	assert.Equal(t, 30*time.Second, o.Timeout)
	assert.Equal(t, 3, o.MaxRetries)
	c := BuildHTTPClient(HTTPOptions{Timeout: time.Second})
	assert.Equal(t, time.Second, c.Timeout)
}
