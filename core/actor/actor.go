package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/codewandler/actorbus/core/ticker"
)

// OnPanic is called with the recovered value when a handler panics. The actor
// fails afterwards regardless of what OnPanic does.
type OnPanic func(recovered any, stack []byte, msg any)

type Options struct {
	// ID is the actor identity. Empty means a generated "urn:uuid:..." id.
	ID string
	// Registry the actor registers itself in. Nil means a private registry,
	// which makes the actor reachable only through its Ref.
	Registry      *Registry
	MailboxSize   int
	Logger        *slog.Logger
	Metrics       ActorMetrics
	TickerMetrics ticker.Metrics
	OnPanic       OnPanic
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Actor processes its mailbox one message at a time on its own goroutine.
type Actor struct {
	id            string
	registry      *Registry
	log           *slog.Logger
	metrics       ActorMetrics
	tickerMetrics ticker.Metrics
	onPanic       OnPanic
	handler       *TypedHandlerRegistry

	mailbox chan any
	stop    chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	state    state
	err      error
	stopOnce sync.Once

	cancel  context.CancelFunc
	tickers tickers
}

func New(opts Options, handler *TypedHandlerRegistry) *Actor {
	if opts.ID == "" {
		opts.ID = NewID()
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = 1024
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopActorMetrics()
	}
	if opts.TickerMetrics == nil {
		opts.TickerMetrics = ticker.NopMetrics()
	}
	if handler == nil {
		handler = TypedHandlers()
	}

	log := opts.Logger.With(slog.String("actor", opts.ID))
	if opts.OnPanic == nil {
		opts.OnPanic = func(recovered any, stack []byte, msg any) {
			log.Error(
				"actor panicked",
				slog.Any("recovered", recovered),
				slog.String("stack", string(stack)),
				slog.String("message_type", messageLabel(msg)),
			)
		}
	}

	return &Actor{
		id:            opts.ID,
		registry:      opts.Registry,
		log:           log,
		metrics:       opts.Metrics,
		tickerMetrics: opts.TickerMetrics,
		onPanic:       opts.OnPanic,
		handler:       handler,
		mailbox:       make(chan any, opts.MailboxSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (a *Actor) ID() string { return a.id }

// Done is closed once the actor has fully stopped.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Err returns the failure cause, or nil while running and after a clean Stop.
func (a *Actor) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Start registers the actor, runs the start hooks, starts its tickers and
// launches the message loop. ctx is the parent of the handler context.
func (a *Actor) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != stateIdle {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := a.registry.Register(a); err != nil {
		a.mu.Unlock()
		return err
	}
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.state = stateRunning
	a.mu.Unlock()

	hc := &handlerCtx{Context: hctx, actor: a}
	if err := a.startHooks(hc); err != nil {
		cause := fmt.Errorf("actor %s: start: %w", a.id, err)
		a.mu.Lock()
		a.state = stateStopped
		a.err = cause
		a.mu.Unlock()
		a.shutdown(hc, cause)
		return cause
	}

	go a.loop(hc)
	a.log.Debug("actor started")
	return nil
}

func (a *Actor) startHooks(hc *handlerCtx) error {
	for _, f := range a.handler.starts {
		if err := f(hc); err != nil {
			return err
		}
	}
	return a.tickers.start(a, a.handler.ticks)
}

// Tell enqueues msg. It never blocks.
func (a *Actor) Tell(msg any) error {
	a.mu.Lock()
	stopped := a.state == stateStopped
	a.mu.Unlock()
	if stopped {
		return ErrActorStopped
	}

	select {
	case <-a.stop:
		return ErrActorStopped
	default:
	}

	select {
	case a.mailbox <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrMailboxFull, a.id)
	}
}

// Stop signals the loop and waits until the actor has shut down. It must not
// be called from the actor's own handlers; use HandlerCtx.Stop there.
func (a *Actor) Stop() error {
	a.mu.Lock()
	idle := a.state == stateIdle
	a.mu.Unlock()
	if idle {
		return ErrNotStarted
	}

	a.signalStop()
	<-a.done
	return nil
}

func (a *Actor) signalStop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (a *Actor) loop(hc *handlerCtx) {
	var cause error
	defer func() {
		a.mu.Lock()
		a.state = stateStopped
		a.err = cause
		a.mu.Unlock()
		a.shutdown(hc, cause)
	}()

	for {
		select {
		case <-a.stop:
			return
		default:
		}

		select {
		case <-a.stop:
			return
		case msg := <-a.mailbox:
			a.metrics.MailboxDepth(a.id, len(a.mailbox))
			if err := a.handle(hc, msg); err != nil {
				cause = err
				a.log.Error("actor failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (a *Actor) handle(hc *handlerCtx, msg any) (err error) {
	label := messageLabel(msg)
	timer := a.metrics.MessageDuration(label)
	defer func() {
		if r := recover(); r != nil {
			a.metrics.MessagePanic(label)
			a.onPanic(r, debug.Stack(), msg)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		timer.ObserveDuration()
		a.metrics.MessageProcessed(label, err == nil)
	}()

	return a.handler.HandleMessage(hc, msg)
}

// shutdown stops the tickers, runs the stop hooks, unregisters and closes done.
func (a *Actor) shutdown(hc *handlerCtx, cause error) {
	a.signalStop()
	a.tickers.stop()
	a.cancel()

	for _, f := range a.handler.stops {
		a.runStopHook(hc, f, cause)
	}

	a.registry.remove(a)
	a.metrics.ActorStopped(a.id, cause != nil)
	if cause != nil {
		a.log.Debug("actor stopped", slog.Any("error", cause))
	} else {
		a.log.Debug("actor stopped")
	}
	close(a.done)
}

func (a *Actor) runStopHook(hc *handlerCtx, f StopFunc, cause error) {
	defer func() {
		if r := recover(); r != nil {
			a.onPanic(r, debug.Stack(), nil)
		}
	}()
	f(hc, cause)
}

var _ Ref = (*Actor)(nil)
