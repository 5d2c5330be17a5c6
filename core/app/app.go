package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/bus"
	"github.com/codewandler/actorbus/core/proxy"
	"github.com/codewandler/actorbus/core/ticker"
	"github.com/codewandler/actorbus/ports/kv"
)

type ActorOptions struct {
	MailboxSize int
	OnPanic     actor.OnPanic
}

type MetricsConfig struct {
	Actor  actor.ActorMetrics
	Ticker ticker.Metrics
	Proxy  proxy.ProxyMetrics
}

type Config struct {
	Context context.Context
	Log     *slog.Logger
	// NodeID names this process in logs and directory entries.
	NodeID string
	// Proxy defaults to proxy.DefaultConfig().
	Proxy *proxy.Config
	// Connect defaults to an in-process bus.Hub.
	Connect bus.Connector
	// Directory, if set, lists the registry's identities and makes the
	// client fail fast on unknown ones.
	Directory kv.Store
	Actor     ActorOptions
	Metrics   MetricsConfig
}

type App struct {
	ctx       context.Context
	cancelCtx context.CancelFunc
	log       *slog.Logger
	nodeID    string
	cfg       proxy.Config
	connect   bus.Connector
	actorOpts ActorOptions
	metrics   MetricsConfig
	store     kv.Store

	registry  *actor.Registry
	directory *proxy.Directory
	detach    func()
	responder *actor.Actor
	client    *proxy.Client

	mu       sync.Mutex
	actors   []*actor.Actor
	stopOnce sync.Once
	done     chan struct{}
}

func New(config Config) (*App, error) {
	app := &App{
		registry: actor.NewRegistry(),
		done:     make(chan struct{}),
	}

	app.nodeID = config.NodeID
	if app.nodeID == "" {
		app.nodeID = fmt.Sprintf("node-%s", gonanoid.Must(6))
	}

	// === logger ===
	if config.Log == nil {
		config.Log = slog.Default()
	}
	app.log = config.Log.With(slog.String("node", app.nodeID))

	// === context ===
	if config.Context == nil {
		config.Context = context.Background()
	}
	app.ctx, app.cancelCtx = context.WithCancel(config.Context)

	// === bridge config ===
	app.cfg = proxy.DefaultConfig()
	if config.Proxy != nil {
		app.cfg = *config.Proxy
	}
	app.connect = config.Connect
	if app.connect == nil {
		app.connect = bus.NewHub().WithLog(app.log).Connector()
		app.cfg.Bus.Driver = "memory"
	}
	if err := app.cfg.Validate(); err != nil {
		app.cancelCtx()
		return nil, err
	}

	app.actorOpts = config.Actor
	app.metrics = config.Metrics
	app.store = config.Directory

	app.log.Debug("creating app", slog.Any("config", app.cfg))
	return app, nil
}

// Run starts the responder, attaches the directory and opens the client.
func (a *App) Run() (err error) {
	defer func() {
		if err != nil {
			a.Stop()
		}
	}()

	if a.store != nil {
		a.directory = proxy.NewDirectory(proxy.DirectoryOptions{Store: a.store, Node: a.nodeID, Log: a.log})
		if a.detach, err = a.directory.Attach(a.ctx, a.registry); err != nil {
			return err
		}
	}

	a.responder, err = proxy.StartResponder(a.ctx, proxy.ResponderOptions{
		Config:       a.cfg,
		Connect:      a.connect,
		Registry:     a.registry,
		Log:          a.log,
		Metrics:      a.metrics.Proxy,
		ActorMetrics: a.metrics.Actor,
		NackUnknown:  a.cfg.NackUnknown,
	})
	if err != nil {
		return err
	}

	a.client, err = proxy.NewClient(a.ctx, proxy.ClientOptions{
		Config:    a.cfg,
		Connect:   a.connect,
		Log:       a.log,
		Metrics:   a.metrics.Proxy,
		Directory: a.directory,
	})
	if err != nil {
		return err
	}

	a.log.Info(
		"app started",
		slog.String("driver", a.cfg.Bus.Driver),
		slog.String("inbound_channel", a.cfg.InboundChannel),
	)
	return nil
}

func (a *App) Registry() *actor.Registry { return a.registry }
func (a *App) Client() *proxy.Client     { return a.client }
func (a *App) Config() proxy.Config      { return a.cfg }
func (a *App) Done() <-chan struct{}     { return a.done }

// Spawn starts an actor registered as id. An empty id gets a generated URN.
func (a *App) Spawn(id string, handlers ...actor.HandlerRegistration) (*actor.Actor, error) {
	act := actor.New(actor.Options{
		ID:            id,
		Registry:      a.registry,
		MailboxSize:   a.actorOpts.MailboxSize,
		Logger:        a.log,
		Metrics:       a.metrics.Actor,
		TickerMetrics: a.metrics.Ticker,
		OnPanic:       a.actorOpts.OnPanic,
	}, actor.TypedHandlers(handlers...))

	if err := act.Start(a.ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.actors = append(a.actors, act)
	a.mu.Unlock()
	return act, nil
}

// Stop stops spawned actors in reverse order, then the client and the
// responder. It is idempotent.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		actors := slices.Clone(a.actors)
		a.mu.Unlock()

		slices.Reverse(actors)
		for _, act := range actors {
			if err := act.Stop(); err != nil && !errors.Is(err, actor.ErrNotStarted) {
				a.log.Warn("failed to stop actor", slog.String("actor", act.ID()), slog.Any("error", err))
			}
		}
		if a.client != nil {
			_ = a.client.Close()
		}
		if a.responder != nil {
			_ = a.responder.Stop()
		}
		if a.detach != nil {
			a.detach()
		}
		a.cancelCtx()
		a.log.Info("app stopped")
		close(a.done)
	})
}

// Shutdown is Stop bounded by ctx.
func (a *App) Shutdown(ctx context.Context) error {
	go a.Stop()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run creates and runs an App.
func Run(config Config) (*App, error) {
	app, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := app.Run(); err != nil {
		return nil, err
	}
	return app, nil
}
