package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"
)

// defaultKeyOrder pins the leading columns; anything else follows alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "handler", "cb_key",
	"flow", "step", "outcome", "duration_ms",
	"messages", "kb",
	"users", "tasks", "purged", "digests", "failures", "frequency",
	"backend", "path", "payload",
	"mode", "listen", "public_url",
	"db", "host", "port",
	"err", "err_code", "cause", "attempts",
}

var allowedOutcome = map[string]struct{}{
	"ok": {}, "fail": {}, "cancelled": {}, "rate_limited": {}, "expired": {}, "skip": {},
}

// sortedKeys returns the keys of e with pinned ones first.
func (e entry) sortedKeys(pinned []string) []string {
	out := make([]string, 0, len(e))
	for _, k := range pinned {
		if _, ok := e[k]; ok && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	head := len(out)
	for k := range e {
		if !slices.Contains(out[:head], k) {
			out = append(out, k)
		}
	}
	slices.Sort(out[head:])
	return out
}

// render encodes e as a single line without the trailing newline.
func (f logFormat) render(e entry, pinned []string) ([]byte, error) {
	var buf bytes.Buffer
	keys := e.sortedKeys(pinned)
	if f == formatJSON {
		buf.WriteByte('{')
		for i, k := range keys {
			v, err := json.Marshal(e[k])
			if err != nil {
				return nil, fmt.Errorf("logger: encode %q: %w", k, err)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(k))
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(e[k]))
	}
	return buf.Bytes(), nil
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	quote := strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
	if quote {
		return strconv.Quote(s)
	}
	return s
}
