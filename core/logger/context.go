package logger

import (
	"context"
	"log/slog"
)

// scope is the per-request metadata carried through a context.
type scope struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
	log      *slog.Logger
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeOf(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger stores log in ctx. A nil logger leaves ctx untouched.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.log = log })
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := scopeOf(ctx).log; l != nil {
		return l
	}
	return L
}

// WithRID attaches a request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withScope(ctx, func(s *scope) { s.rid = rid })
}

// WithUpdateMeta attaches the identifiers of a Telegram update.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withScope(ctx, func(s *scope) {
		s.updateID, s.userID, s.chatID = updateID, userID, chatID
	})
}

// WithUser attaches only a user id, for work that is not driven by an update.
func WithUser(ctx context.Context, userID int64) context.Context {
	return withScope(ctx, func(s *scope) { s.userID = userID })
}

// WithHandler names the handler serving the current update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.handler = handler })
}

func RIDFrom(ctx context.Context) string     { return scopeOf(ctx).rid }
func HandlerFrom(ctx context.Context) string { return scopeOf(ctx).handler }
func UserIDFrom(ctx context.Context) int64   { return scopeOf(ctx).userID }
func ChatIDFrom(ctx context.Context) int64   { return scopeOf(ctx).chatID }
func UpdateIDFrom(ctx context.Context) int   { return scopeOf(ctx).updateID }

// attrs lists the scope as log fields, skipping zero values.
func (s scope) attrs() []field {
	var out []field
	if s.rid != "" {
		out = append(out, field{"rid", s.rid})
	}
	if s.userID != 0 {
		out = append(out, field{"user_id", s.userID})
	}
	if s.updateID != 0 {
		out = append(out, field{"update_id", int64(s.updateID)})
	}
	if s.chatID != 0 {
		out = append(out, field{"chat_id", s.chatID})
	}
	if s.handler != "" {
		out = append(out, field{"handler", s.handler})
	}
	return out
}
