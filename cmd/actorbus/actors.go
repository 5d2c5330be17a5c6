package main

import (
	"log/slog"
	"time"

	"github.com/codewandler/actorbus/core/actor"
)

type (
	Echo struct {
		Message string `json:"message"`
	}

	Stats    struct{}
	StatsOut struct {
		Beats   int       `json:"beats"`
		Started time.Time `json:"started"`
		Last    time.Time `json:"last"`
	}

	beat struct{}
)

func (Echo) MessageType() string  { return "Echo" }
func (Stats) MessageType() string { return "Stats" }

func echoActor() []actor.HandlerRegistration {
	return []actor.HandlerRegistration{
		actor.HandleRequest[Echo, Echo](func(_ actor.HandlerCtx, in Echo) (*Echo, error) {
			return &in, nil
		}),
	}
}

// heartbeatActor counts its own ticks and reports them on Stats.
func heartbeatActor(interval time.Duration) []actor.HandlerRegistration {
	var out StatsOut
	return []actor.HandlerRegistration{
		actor.OnStart(func(hc actor.HandlerCtx) error {
			out.Started = time.Now()
			return nil
		}),
		actor.HandleTick[beat](interval, func(hc actor.HandlerCtx, _ beat) error {
			out.Beats++
			out.Last = time.Now()
			hc.Log().Debug("heartbeat", slog.Int("beats", out.Beats))
			return nil
		}),
		actor.HandleRequest[Stats, StatsOut](func(_ actor.HandlerCtx, _ Stats) (*StatsOut, error) {
			o := out
			return &o, nil
		}),
	}
}
