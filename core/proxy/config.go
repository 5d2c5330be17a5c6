package proxy

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInboundChannel = "out2actor"
	DefaultOutboundPrefix = "actor2out/"
	DefaultAskTimeout     = 30 * time.Second
)

type BusConfig struct {
	// Driver selects the bus adapter: "redis", "nats" or "memory".
	Driver string `yaml:"driver"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
}

// Addr returns "host:port".
func (c BusConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Config is shared by every component of one bridge. Components never read
// the environment; the CLI maps flags and .env values onto it.
type Config struct {
	Bus            BusConfig     `yaml:"bus"`
	InboundChannel string        `yaml:"inbound_channel"`
	OutboundPrefix string        `yaml:"outbound_prefix"`
	AskTimeout     time.Duration `yaml:"ask_timeout"`
	// NackUnknown answers requests for unknown identities with an error
	// response instead of letting the ask time out.
	NackUnknown bool `yaml:"nack_unknown"`
}

func DefaultConfig() Config {
	return Config{
		Bus: BusConfig{
			Driver: "redis",
			Host:   "localhost",
			Port:   6379,
		},
		InboundChannel: DefaultInboundChannel,
		OutboundPrefix: DefaultOutboundPrefix,
		AskTimeout:     DefaultAskTimeout,
	}
}

// ResponseChannel returns the channel the response to messageID is published on.
func (c Config) ResponseChannel(messageID string) string {
	return c.OutboundPrefix + messageID
}

func (c Config) Validate() error {
	var errs []error
	if c.Bus.Host == "" {
		errs = append(errs, errors.New("bus.host is required"))
	}
	if c.Bus.Port <= 0 || c.Bus.Port > 65535 {
		errs = append(errs, fmt.Errorf("bus.port out of range: %d", c.Bus.Port))
	}
	if c.InboundChannel == "" {
		errs = append(errs, errors.New("inbound_channel is required"))
	}
	if c.OutboundPrefix == "" {
		errs = append(errs, errors.New("outbound_prefix is required"))
	}
	if c.AskTimeout < 0 {
		errs = append(errs, fmt.Errorf("ask_timeout must not be negative: %s", c.AskTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("proxy: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}
