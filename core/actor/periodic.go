package actor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/codewandler/actorbus/core/ticker"
	"github.com/codewandler/actorbus/internal/reflector"
)

// Tick makes the actor receive the zero value of T every interval, starting
// right after Start. Ticks go through the mailbox like any other message, so
// T needs a handler (see [HandleMsg] or [HandleTick]).
func Tick[T any](interval time.Duration) HandlerRegistration {
	ti := reflector.TypeInfoFor[T]()
	return func(r HandlerRegistrar) {
		r.RegisterTick(TickSpec{
			Name:     ti.Name,
			Label:    ti.Short,
			Interval: interval,
			New:      func() any { var zero T; return zero },
		})
	}
}

// HandleTick is Tick[T] plus HandleMsg[T].
func HandleTick[T any](interval time.Duration, fn func(hc HandlerCtx, msg T) error) HandlerRegistration {
	tick, handle := Tick[T](interval), HandleMsg(fn)
	return func(r HandlerRegistrar) {
		tick(r)
		handle(r)
	}
}

// tickers owns the child tickers of one actor.
type tickers struct {
	running []*ticker.Ticker
}

func (ts *tickers) start(a *Actor, specs []TickSpec) error {
	for _, spec := range specs {
		tk, err := ticker.New(
			spec.Interval,
			a.tickFunc(spec),
			ticker.WithName(a.id+"/"+spec.Label),
			ticker.WithLogger(a.log),
			ticker.WithMetrics(a.tickerMetrics),
		)
		if err != nil {
			ts.stop()
			return err
		}
		if err := tk.Start(); err != nil {
			ts.stop()
			return err
		}
		ts.running = append(ts.running, tk)
	}
	return nil
}

// stop stops and joins every ticker.
func (ts *tickers) stop() {
	for _, tk := range ts.running {
		_ = tk.Stop()
	}
	ts.running = nil
}

func (a *Actor) tickFunc(spec TickSpec) func() {
	return func() {
		err := a.Tell(spec.New())
		if err == nil || errors.Is(err, ErrActorStopped) {
			return
		}
		a.log.Warn("tick not delivered", slog.String("tick", spec.Label), slog.Any("error", err))
	}
}
