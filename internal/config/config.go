// Package config loads the jigna-serve configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jigna-sync/jigna-go/pkg/channel"
	"github.com/jigna-sync/jigna-go/pkg/discovery"
	"github.com/jigna-sync/jigna-go/pkg/relay"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Redis     RedisConfig     `yaml:"redis"`
}

// ServerConfig configures the HTTP server and websocket channel.
type ServerConfig struct {
	ListenAddress  string        `yaml:"listen_address"`
	WSPath         string        `yaml:"ws_path"`
	WriteQueue     int           `yaml:"write_queue"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// ProtocolLog is the path of the CBOR protocol log. Empty disables it.
	ProtocolLog string `yaml:"protocol_log"`
}

// DiscoveryConfig configures mDNS advertising.
type DiscoveryConfig struct {
	Advertise bool          `yaml:"advertise"`
	Instance  string        `yaml:"instance_name"`
	Interface string        `yaml:"interface"`
	TTL       time.Duration `yaml:"ttl"`
}

// RedisConfig configures the optional Redis relay. An empty Addr disables
// the relay.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
	Queue   int    `yaml:"queue"`
}

// LoadError reports a configuration file that could not be loaded.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.File + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the built-in configuration.
func Default() *Config {
	ch := channel.DefaultConfig()
	adv := discovery.DefaultAdvertiserConfig()
	rl := relay.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddress:  "127.0.0.1:8888",
			WSPath:         "/jigna",
			WriteQueue:     ch.WriteQueue,
			WriteWait:      ch.WriteWait,
			PongWait:       ch.PongWait,
			MaxMessageSize: ch.MaxMessageSize,
			ShutdownGrace:  5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Discovery: DiscoveryConfig{
			Instance: "jigna",
			TTL:      adv.TTL,
		},
		Redis: RedisConfig{
			Channel: rl.Channel,
			Queue:   rl.Queue,
		},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to load", Cause: err}
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("%w: server.listen_address is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") || c.Server.WSPath == "/" {
		return fmt.Errorf("%w: server.ws_path must be an absolute path other than /", ErrInvalidConfig)
	}
	if c.Server.ShutdownGrace < 0 {
		return fmt.Errorf("%w: server.shutdown_grace must not be negative", ErrInvalidConfig)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	ch := c.ChannelConfig()
	if err := ch.Validate(); err != nil {
		return fmt.Errorf("%w: server: %w", ErrInvalidConfig, err)
	}

	if c.Discovery.Advertise {
		if err := discovery.ValidateInstanceName(c.Discovery.Instance); err != nil {
			return fmt.Errorf("%w: discovery.instance_name: %v", ErrInvalidConfig, err)
		}
	}

	if c.Redis.Addr != "" {
		rl := c.RelayConfig()
		if err := rl.Validate(); err != nil {
			return fmt.Errorf("%w: redis: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	return level, nil
}

// ChannelConfig returns the websocket channel settings. Loggers are left
// for the caller.
func (c *Config) ChannelConfig() channel.Config {
	return channel.Config{
		WriteQueue:     c.Server.WriteQueue,
		WriteWait:      c.Server.WriteWait,
		PongWait:       c.Server.PongWait,
		MaxMessageSize: c.Server.MaxMessageSize,
	}
}

// RelayConfig returns the Redis relay settings.
func (c *Config) RelayConfig() relay.Config {
	return relay.Config{
		Channel: c.Redis.Channel,
		Queue:   c.Redis.Queue,
	}
}

// AdvertiserConfig returns the mDNS advertiser settings.
func (c *Config) AdvertiserConfig() discovery.AdvertiserConfig {
	return discovery.AdvertiserConfig{
		Interface: c.Discovery.Interface,
		TTL:       c.Discovery.TTL,
	}
}
