// Package sender runs outbound Bot API calls with bounded retries, either
// on a background worker pool or synchronously.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned once the dispatcher has been closed.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the job was not accepted because the queue is saturated.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

// Options controls the dispatcher. Zero values select defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// Stats counts finished jobs.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retries uint64
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls with retries. Queued jobs are
// split into one FIFO lane per worker by key, so calls for the same chat run
// in the order they were enqueued.
type Dispatcher struct {
	opts  Options
	lanes []chan job
	stop  chan struct{}
	// mu guards sends to lanes against Close.
	mu   sync.RWMutex
	once sync.Once
	wg   sync.WaitGroup

	sent, failed, retries atomic.Uint64
}

// NewDispatcher starts opts.Workers background workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		lanes: make([]chan job, opts.Workers),
		stop:  make(chan struct{}),
	}
	depth := max(1, (opts.QueueSize+opts.Workers-1)/opts.Workers)
	d.wg.Add(opts.Workers)
	for i := range d.lanes {
		lane := make(chan job, depth)
		d.lanes[i] = lane
		go func() {
			defer d.wg.Done()
			for j := range lane {
				_ = d.execute(j)
			}
		}()
	}
	return d
}

func (d *Dispatcher) lane(key int64) chan job {
	return d.lanes[uint64(key)%uint64(len(d.lanes))]
}

func (d *Dispatcher) closed() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

// Enqueue hands run to the worker owning key (usually the chat id) and
// returns immediately. run may be called more than once, so it must be safe
// to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed() {
		return ErrQueueClosed
	}
	select {
	case d.lane(key) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs the call on the caller's goroutine with the same retry policy as
// queued jobs and returns the final error.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	if d.closed() {
		return ErrQueueClosed
	}
	return d.execute(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// Stats returns counters since start.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Retries: d.retries.Load()}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		close(d.stop)
		for _, lane := range d.lanes {
			close(lane)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) execute(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	bounded, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			d.sent.Add(1)
			logger.Debug(ctx, component, "send.ok", j.attrs(
				slog.Int("attempt", attempt),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)...)
			return nil
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}

		delay := netutil.RetryDelay(err, d.opts.RetryBackoff*time.Duration(attempt))
		logger.Debug(ctx, component, "send.retry", j.attrs(
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("err_kind", Classify(err)),
		)...)
		d.retries.Add(1)
		if werr := wait(bounded, delay); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	d.failed.Add(1)
	logger.Error(ctx, component, "send.fail", j.attrs(
		slog.String("status", "fail"),
		slog.String("err", Redact(err)),
		slog.String("err_kind", Classify(err)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)...)
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// attrs lists the job fields; rid and user ids come from ctx via the log handler.
func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}
