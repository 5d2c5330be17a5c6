// Package ticker runs an action at a fixed interval on its own goroutine.
//
// The next run is always scheduled relative to the moment the previous run
// fired, not to a fixed origin. A slow action therefore pushes later runs back
// instead of causing a burst of catch-up runs. The first run happens right
// after Start.
//
// A Ticker is meant to hand work to something else, typically by telling an
// actor a message, rather than doing the work itself.
package ticker

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/actorbus/core/metrics"
)

var (
	ErrNotStarted      = errors.New("ticker: not started")
	ErrAlreadyStarted  = errors.New("ticker: already started")
	ErrInvalidInterval = errors.New("ticker: interval must be positive")
)

// Metrics is implemented by adapters/prometheus.
type Metrics interface {
	// TickDuration times one execution of the action.
	TickDuration(name string) metrics.Timer
	// TickLateness records how long after its scheduled time a tick fired.
	TickLateness(name string, late time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) TickDuration(string) metrics.Timer  { return metrics.NopTimer() }
func (nopMetrics) TickLateness(string, time.Duration) {}

func NopMetrics() Metrics { return nopMetrics{} }

type Option func(*Ticker)

func WithName(name string) Option        { return func(t *Ticker) { t.name = name } }
func WithLogger(log *slog.Logger) Option { return func(t *Ticker) { t.log = log } }
func WithMetrics(m Metrics) Option       { return func(t *Ticker) { t.metrics = m } }

type Ticker struct {
	name     string
	interval time.Duration
	execute  func()
	log      *slog.Logger
	metrics  Metrics

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func New(interval time.Duration, execute func(), opts ...Option) (*Ticker, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if execute == nil {
		return nil, errors.New("ticker: execute is required")
	}
	t := &Ticker{
		name:     "ticker-" + gonanoid.Must(6),
		interval: interval,
		execute:  execute,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	if t.metrics == nil {
		t.metrics = NopMetrics()
	}
	t.log = t.log.With(slog.String("ticker", t.name))
	return t, nil
}

func (t *Ticker) Name() string            { return t.name }
func (t *Ticker) Interval() time.Duration { return t.interval }

// Done is closed once the ticker goroutine has exited.
func (t *Ticker) Done() <-chan struct{} { return t.done }

// Start launches the ticker goroutine. A ticker can be started only once.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	go t.run()
	return nil
}

// Stop signals the goroutine and waits for it to exit. An action that is
// currently running is allowed to finish.
func (t *Ticker) Stop() error {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return fmt.Errorf("%w: %s", ErrNotStarted, t.name)
	}
	t.once.Do(func() { close(t.stop) })
	<-t.done
	return nil
}

func (t *Ticker) run() {
	defer close(t.done)
	t.log.Debug("ticker started", slog.Duration("interval", t.interval))

	next := time.Now()
	for {
		wait := max(0, time.Until(next))
		timer := time.NewTimer(wait)
		select {
		case <-t.stop:
			timer.Stop()
			t.log.Debug("ticker stopped")
			return
		case <-timer.C:
		}

		// a stop that raced with an already elapsed timer wins
		select {
		case <-t.stop:
			t.log.Debug("ticker stopped")
			return
		default:
		}

		now := time.Now()
		t.metrics.TickLateness(t.name, now.Sub(next))
		next = now.Add(t.interval)
		t.fire()
	}
}

func (t *Ticker) fire() {
	defer t.metrics.TickDuration(t.name).ObserveDuration()
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tick panicked", slog.Any("recovered", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	t.execute()
}
