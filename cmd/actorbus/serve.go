package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	promadapter "github.com/codewandler/actorbus/adapters/prometheus"
	"github.com/codewandler/actorbus/core/app"
)

type serveFlags struct {
	nodeID      string
	metricsAddr string
	directory   bool
	heartbeat   time.Duration
	mailboxSize int
}

func newServeCmd(c *cli) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge with the echo and heartbeat actors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.nodeID, "node-id", "", "node name, generated if empty")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", ":2112", "address of the /metrics endpoint, empty to disable")
	cmd.Flags().BoolVar(&f.directory, "directory", false, "publish actor identities to the directory store")
	cmd.Flags().DurationVar(&f.heartbeat, "heartbeat", time.Second, "tick interval of the heartbeat actor")
	cmd.Flags().IntVar(&f.mailboxSize, "mailbox-size", 0, "actor mailbox size, 0 for the default")
	return cmd
}

func (c *cli) serve(parent context.Context, f serveFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := promadapter.NewAllMetrics(reg)

	cfg := c.cfg
	appCfg := app.Config{
		Context: ctx,
		Log:     c.log,
		NodeID:  f.nodeID,
		Proxy:   &cfg,
		Actor:   app.ActorOptions{MailboxSize: f.mailboxSize},
		Metrics: app.MetricsConfig{Actor: m.Actor, Ticker: m.Ticker, Proxy: m.Proxy},
	}
	if cfg.Bus.Driver != "memory" {
		connect, err := busConnector(cfg, c.log)
		if err != nil {
			return err
		}
		appCfg.Connect = withRetry(connect, c.log)
	}
	if f.directory {
		store, err := directoryStore(ctx, cfg)
		if err != nil {
			return err
		}
		if closer, ok := store.(interface{ Close() }); ok {
			defer closer.Close()
		}
		appCfg.Directory = store
	}

	a, err := app.Run(appCfg)
	if err != nil {
		return err
	}
	defer a.Stop()

	if _, err := a.Spawn("echo", echoActor()...); err != nil {
		return err
	}
	if _, err := a.Spawn("heartbeat", heartbeatActor(f.heartbeat)...); err != nil {
		return err
	}
	c.log.Info("serving", slog.Any("actors", a.Registry().IDs()))

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)
	if f.metricsAddr != "" {
		srv := &http.Server{
			Addr:              f.metricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			c.log.Info("metrics listening", slog.String("addr", f.metricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		defer cancelRun()
		select {
		case <-gctx.Done():
		case <-a.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	c.log.Info("bye")
	return err
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
