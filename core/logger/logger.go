package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/taskbot/core/buildinfo"
	coreconfig "github.com/m3rciful/taskbot/core/config"
)

var (
	// L is the base logger. Until InitLogger runs it is slog.Default.
	L = slog.Default()

	DB       = L // database connectivity
	MIG      = L // schema migrations
	TG       = L // Telegram transport
	TWire    = L // Telegram route wiring
	Store    = L // task store persistence
	Dialogue = L // conversation flows
	Reminder = L // scheduled reminder runs
)

var (
	initOnce sync.Once
	level    slog.LevelVar

	sinkMu  sync.Mutex
	writer  *asyncWriter
	files   []io.Closer
	stopped bool

	debugSampler = newRatioSampler(1, 50)
	tracing      bool
)

// settings is the resolved form of the logging section.
type settings struct {
	level     slog.Level
	format    logFormat
	keyOrder  []string
	sampleNum int
	sampleDen int
	profile   string
	dir, file string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		level:     slog.LevelInfo,
		format:    formatJSON,
		keyOrder:  defaultKeyOrder,
		sampleNum: 1,
		sampleDen: 50,
		profile:   "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	if order := splitList(lc.KeysOrder); len(order) > 0 && !(len(order) == 1 && order[0] == "default") {
		s.keyOrder = order
	}

	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch n, d := parseRatioSpec(spec); {
		case n == 0 && d == 0:
			s.sampleNum, s.sampleDen = 0, 0
		case n > 0 && d > 0:
			s.sampleNum, s.sampleDen = n, d
		}
	}

	s.dir = strings.TrimSpace(lc.Dir)
	s.file = strings.TrimSpace(lc.BotFile)
	return s
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// openSinks returns stdout plus the optional log file. A file that cannot be
// opened is reported on stderr and skipped.
func (s settings) openSinks() ([]io.Writer, []io.Closer) {
	sinks := []io.Writer{os.Stdout}
	if s.dir == "" || s.file == "" {
		return sinks, nil
	}
	path := filepath.Join(s.dir, s.file)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logger: create %s: %v\n", s.dir, err)
		return sinks, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: open %s: %v\n", path, err)
		return sinks, nil
	}
	return append(sinks, f), []io.Closer{f}
}

// InitLogger installs the structured logger as slog's default.
// Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := resolve(cfg)
		level.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		tracing = envOn("TRACE") || envOn("LOG_TRACE")

		sinks, closers := s.openSinks()
		sinkMu.Lock()
		writer = newAsyncWriter(sinks, 64<<10)
		files = closers
		sinkMu.Unlock()

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &level,
			writer:   writer,
			format:   s.format,
			keyOrder: s.keyOrder,
		}))
		slog.SetDefault(L)
		bindComponents()

		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return nil
}

func bindComponents() {
	for dst, name := range map[**slog.Logger]string{
		&DB:       "db",
		&MIG:      "db.migrate",
		&TG:       "tg",
		&TWire:    "tg.wire",
		&Store:    "store",
		&Dialogue: "dialogue",
		&Reminder: "reminder",
	} {
		*dst = L.With("component", name)
	}
}

func envOn(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Shutdown flushes pending lines and closes the log file. Later calls are no-ops.
func Shutdown() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if stopped {
		return nil
	}
	stopped = true

	var errs []error
	if writer != nil {
		errs = append(errs, writer.Flush(), writer.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes attrs under event using logg, falling back to the logger in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

// Component returns L tagged with the given component name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name != "" {
		return L.With("component", name)
	}
	return L
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
// TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return tracing || debugSampler.Allow()
}
