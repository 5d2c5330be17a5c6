package actor

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type (
	accumulate struct{}
	check      struct{}
)

// accumulator counts accumulate ticks between check ticks. The first tick of
// each kind fires on start and is ignored.
type accumulator struct {
	mu          sync.Mutex
	firstAcc    bool
	firstCheck  bool
	counter     int
	windows     []int
	accumulated int
}

func (acc *accumulator) handlers() []HandlerRegistration {
	return []HandlerRegistration{
		HandleTick(200*time.Millisecond, func(hc HandlerCtx, _ accumulate) error {
			acc.mu.Lock()
			defer acc.mu.Unlock()
			if !acc.firstAcc {
				acc.firstAcc = true
				return nil
			}
			acc.counter++
			return nil
		}),
		HandleTick(time.Second, func(hc HandlerCtx, _ check) error {
			acc.mu.Lock()
			defer acc.mu.Unlock()
			if !acc.firstCheck {
				acc.firstCheck = true
				return nil
			}
			acc.windows = append(acc.windows, acc.counter)
			acc.accumulated += acc.counter
			acc.counter = 0
			return nil
		}),
	}
}

func TestPeriodic_AccumulatorScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for 5s")
	}

	acc := &accumulator{}
	a := New(Options{ID: "accumulator", Logger: slog.New(slog.DiscardHandler)}, TypedHandlers(acc.handlers()...))
	require.NoError(t, a.Start(t.Context()))
	time.Sleep(5 * time.Second)
	require.NoError(t, a.Stop())

	acc.mu.Lock()
	defer acc.mu.Unlock()

	// B fires at 1s..4s, a fifth check may race the stop at 5s. A is counted
	// per B window, so the first four windows hold 20±1 ticks of A.
	require.InDelta(t, 4, len(acc.windows), 1, "checks: %v", acc.windows)
	require.GreaterOrEqual(t, len(acc.windows), 4, "checks: %v", acc.windows)
	first4 := 0
	for _, n := range acc.windows[:4] {
		require.InDelta(t, 5, n, 1, "windows: %v", acc.windows)
		first4 += n
	}
	require.InDelta(t, 20, first4, 1, "windows: %v", acc.windows)
	require.InDelta(t, 5*len(acc.windows), acc.accumulated, 1, "windows: %v", acc.windows)
}

func TestPeriodic_TickersStopWithActor(t *testing.T) {
	ticks := make(chan struct{}, 1024)
	a := New(Options{Logger: slog.New(slog.DiscardHandler)}, TypedHandlers(
		HandleTick(5*time.Millisecond, func(hc HandlerCtx, _ accumulate) error {
			ticks <- struct{}{}
			return nil
		}),
	))
	require.NoError(t, a.Start(t.Context()))
	require.Eventually(t, func() bool { return len(ticks) >= 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, a.Stop())

	n := len(ticks)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, n, len(ticks))
}

func TestPeriodic_TickersStopOnFailure(t *testing.T) {
	ticks := make(chan struct{}, 1024)
	a := New(Options{Logger: slog.New(slog.DiscardHandler)}, TypedHandlers(
		HandleTick(5*time.Millisecond, func(hc HandlerCtx, _ accumulate) error {
			ticks <- struct{}{}
			if len(ticks) == 3 {
				return errors.New("enough")
			}
			return nil
		}),
	))
	require.NoError(t, a.Start(t.Context()))

	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("actor did not fail")
	}
	require.ErrorContains(t, a.Err(), "enough")
	require.Empty(t, a.tickers.running)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 3, len(ticks))
}

func TestPeriodic_InvalidInterval(t *testing.T) {
	a := New(Options{Logger: slog.New(slog.DiscardHandler)}, TypedHandlers(
		Tick[check](0),
		HandleMsg(func(hc HandlerCtx, _ check) error { return nil }),
	))
	require.Error(t, a.Start(t.Context()))
	<-a.Done()
}

func TestTick_LastRegistrationWins(t *testing.T) {
	th := TypedHandlers(Tick[check](time.Second), Tick[check](time.Minute), Tick[accumulate](time.Hour))
	require.Len(t, th.ticks, 2)
	require.Equal(t, time.Minute, th.ticks[0].Interval)
	require.Equal(t, "check", th.ticks[0].Label)
}
