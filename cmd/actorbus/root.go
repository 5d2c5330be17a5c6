package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codewandler/actorbus/core/proxy"
)

type rootFlags struct {
	configFile string
	envFile    string
	driver     string
	host       string
	port       int
	inbound    string
	outbound   string
	logLevel   string
	logFormat  string
}

type cli struct {
	flags rootFlags
	cfg   proxy.Config
	log   *slog.Logger
}

func newRootCmd() *cobra.Command {
	return (&cli{}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "actorbus",
		Short:        "Bridge an actor system to a pub/sub bus",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.flags.configFile, "config", "", "YAML config file")
	f.StringVar(&c.flags.envFile, "env-file", ".env", "dotenv file, ignored if missing")
	f.StringVar(&c.flags.driver, "driver", "", "bus driver: redis, nats or memory")
	f.StringVar(&c.flags.host, "host", "", "bus host")
	f.IntVar(&c.flags.port, "port", 0, "bus port")
	f.StringVar(&c.flags.inbound, "inbound-channel", "", "channel requests are published on")
	f.StringVar(&c.flags.outbound, "outbound-prefix", "", "prefix of response channels")
	f.StringVar(&c.flags.logLevel, "log-level", "info", "debug, info, warn or error")
	f.StringVar(&c.flags.logFormat, "log-format", "text", "text or json")

	root.AddCommand(newServeCmd(c), newAskCmd(c), newTellCmd(c))
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	log, err := newLogger(c.flags.logLevel, c.flags.logFormat)
	if err != nil {
		return err
	}
	c.log = log
	slog.SetDefault(log)

	if err := godotenv.Load(c.flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.flags.envFile, err)
	}

	c.cfg = proxy.DefaultConfig()
	if c.flags.configFile != "" {
		if c.cfg, err = proxy.LoadConfig(c.flags.configFile); err != nil {
			return err
		}
	}
	if err := applyEnv(&c.cfg); err != nil {
		return err
	}

	fl := cmd.Flags()
	if fl.Changed("driver") {
		c.cfg.Bus.Driver = c.flags.driver
	}
	if fl.Changed("host") {
		c.cfg.Bus.Host = c.flags.host
	}
	if fl.Changed("port") {
		c.cfg.Bus.Port = c.flags.port
	}
	if fl.Changed("inbound-channel") {
		c.cfg.InboundChannel = c.flags.inbound
	}
	if fl.Changed("outbound-prefix") {
		c.cfg.OutboundPrefix = c.flags.outbound
	}
	return c.cfg.Validate()
}

// applyEnv maps ACTORBUS_* variables onto cfg.
func applyEnv(cfg *proxy.Config) error {
	if v, ok := os.LookupEnv("ACTORBUS_BUS_DRIVER"); ok {
		cfg.Bus.Driver = v
	}
	if v, ok := os.LookupEnv("ACTORBUS_BUS_HOST"); ok {
		cfg.Bus.Host = v
	}
	if v, ok := os.LookupEnv("ACTORBUS_BUS_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACTORBUS_BUS_PORT: %w", err)
		}
		cfg.Bus.Port = port
	}
	if v, ok := os.LookupEnv("ACTORBUS_INBOUND_CHANNEL"); ok {
		cfg.InboundChannel = v
	}
	if v, ok := os.LookupEnv("ACTORBUS_OUTBOUND_PREFIX"); ok {
		cfg.OutboundPrefix = v
	}
	if v, ok := os.LookupEnv("ACTORBUS_NACK_UNKNOWN"); ok {
		nack, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ACTORBUS_NACK_UNKNOWN: %w", err)
		}
		cfg.NackUnknown = nack
	}
	return nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
