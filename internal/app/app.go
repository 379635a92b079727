// Package app wires storage, the dialogue engine, the reminder and the
// Telegram runtime into a runnable bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/taskbot/core/bootstrap"
	corecmd "github.com/m3rciful/taskbot/core/cmd"
	"github.com/m3rciful/taskbot/core/logger"
	coretelegram "github.com/m3rciful/taskbot/core/telegram"
	"github.com/m3rciful/taskbot/core/telegram/router"
	tgsender "github.com/m3rciful/taskbot/core/telegram/sender"
	"github.com/m3rciful/taskbot/core/telegram/state"
	"github.com/m3rciful/taskbot/core/telegram/ui"
	"github.com/m3rciful/taskbot/internal/bot"
	"github.com/m3rciful/taskbot/internal/config"
	"github.com/m3rciful/taskbot/internal/dialogue"
	"github.com/m3rciful/taskbot/internal/reminder"
	"github.com/m3rciful/taskbot/internal/storage"
	"github.com/m3rciful/taskbot/internal/tasks"

	tele "gopkg.in/telebot.v4"
)

const janitorInterval = time.Minute

var fallbacks = ui.Fallbacks{
	Document: "I can only read text messages. Send /help to see what I can do.",
	Callback: "This menu has expired",
}

// Options lets tests replace infrastructure steps.
type Options struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
	// Persister, when set, is used instead of the configured backend.
	Persister tasks.Persister
}

// App is the assembled bot.
type App struct {
	cfg   *config.Config
	infra *bootstrap.Result

	store     *tasks.Store
	sessions  *dialogue.Sessions
	engine    *dialogue.Engine
	notifier  *bot.Notifier
	reminder  *reminder.Reminder
	handlers  *bot.Handlers
	scheduler *reminder.Scheduler

	stopJanitor context.CancelFunc
}

// Bootstrap adapts New to the core runner.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(context.Background(), cfg, Options{})
}

// LoadConfig adapts config.Load to the core runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return config.Load(path)
}

// New initializes logging and storage and builds every component.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}

	bopts := bootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.UsesDatabase() && opts.Persister == nil {
		db := cfg.Database
		bopts.Database = &db
	}
	infra, err := run(bopts)
	if err != nil {
		return nil, err
	}

	persister := opts.Persister
	if persister == nil {
		persister, err = openPersister(cfg, infra)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
	}

	store, err := tasks.Open(ctx, persister,
		tasks.WithGraceDays(cfg.Reminder.Grace()),
		tasks.WithLocation(cfg.Reminder.Location()),
	)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: open task store: %w", err)
	}

	a := &App{cfg: cfg, infra: infra, store: store}
	a.sessions = state.NewStore[dialogue.Flow](cfg.Session.IdleTimeout)
	a.engine = dialogue.New(store, a.sessions, dialogue.Options{ReminderTime: cfg.Reminder.Display()})
	a.notifier = bot.NewNotifier(nil, nil)
	a.reminder = reminder.New(store, a.notifier, cfg.Reminder.Location())
	a.handlers = bot.New(a.engine, a.reminder)

	a.scheduler, err = reminder.NewScheduler(a.reminder, cfg.Reminder.Time, cfg.Reminder.Location())
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	logger.LogEvent(ctx, logger.Component("app"), slog.LevelInfo, "app.wired",
		slog.String("status", "ok"),
		slog.String("storage", persister.Name()),
		slog.String("reminder_time", cfg.Reminder.Time),
		slog.String("timezone", cfg.Reminder.Timezone),
		slog.Int("grace_days", store.GraceDays()),
	)
	return a, nil
}

func openPersister(cfg *config.Config, infra *bootstrap.Result) (tasks.Persister, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		if infra == nil || infra.DB == nil {
			return nil, errors.New("app: postgres backend selected but no database connection")
		}
		return storage.NewPostgresStore(infra.DB), nil
	default:
		fs, err := storage.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("app: open %s: %w", cfg.Storage.Path, err)
		}
		return fs, nil
	}
}

// Store exposes the task store.
func (a *App) Store() *tasks.Store { return a.store }

// TelegramRunOptions builds the routes, middleware and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := coretelegram.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	reg.SetCallbackNotFound(fallbacks.UnknownCallback())

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: fallbacks.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(a.handlers, reg, router.TextOptions{
		UnknownDocument: fallbacks.UnknownDocument(),
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	a.notifier.Bind(rt.Bot, rt.Dispatcher)

	janitorCtx, cancel := context.WithCancel(context.Background())
	a.stopJanitor = cancel
	go a.sessions.RunJanitor(janitorCtx, janitorInterval)

	a.scheduler.Start()
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	return a.scheduler.Stop(ctx)
}

// RemindOnce runs a single reminder pass through a bot built from the
// configured token and returns its summary.
func (a *App) RemindOnce(ctx context.Context) (reminder.Summary, error) {
	core := a.cfg.CoreConfig()
	b, err := tele.NewBot(tele.Settings{
		Token:  core.Telegram.Token,
		Client: coretelegram.BuildHTTPClient(coretelegram.HTTPOptions{}),
	})
	if err != nil {
		return reminder.Summary{}, fmt.Errorf("app: bot initialization failed: %w", err)
	}
	d := tgsender.NewDispatcher(coretelegram.DispatcherOptionsFrom(core.Sender))
	defer d.Close()
	return a.remind(ctx, b, d)
}

// RemindWith runs a single reminder pass sending through s without retries.
func (a *App) RemindWith(ctx context.Context, s bot.MessageSender) (reminder.Summary, error) {
	return a.remind(ctx, s, nil)
}

func (a *App) remind(ctx context.Context, s bot.MessageSender, d *tgsender.Dispatcher) (reminder.Summary, error) {
	a.notifier.Bind(s, d)
	sum := a.reminder.Run(ctx)
	if sum.Failures > 0 {
		return sum, fmt.Errorf("reminder: %d of %d users failed", sum.Failures, sum.Users)
	}
	return sum, nil
}

// Close releases the database connection, if any.
func (a *App) Close() error {
	return a.infra.Close()
}
