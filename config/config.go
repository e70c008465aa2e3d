// Package config loads settings for the ingest server and the relay.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// ARTEMIS_* environment variables (a .env file in the working directory is
// read first). Command-line flags are applied by the binaries on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file when no path is passed to Load.
const EnvConfigPath = "ARTEMIS_CONFIG"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Presence  PresenceConfig  `yaml:"presence"`
	History   HistoryConfig   `yaml:"history"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Relay     RelayConfig     `yaml:"relay"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	// Listen is the ingest server's HTTP address.
	Listen string `yaml:"listen"`
	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode"`
}

type PresenceConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type HistoryConfig struct {
	// Limit is the number of entries retained per device.
	Limit int `yaml:"limit"`
}

type BroadcastConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

type RelayConfig struct {
	SourceURL  string        `yaml:"source_url"`
	SinkURL    string        `yaml:"sink_url"`
	Backoff    time.Duration `yaml:"backoff"`
	QueueSize  int           `yaml:"queue_size"`
	StatusAddr string        `yaml:"status_addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables rotated file output next to stdout when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8080",
			Mode:   "release",
		},
		Presence: PresenceConfig{
			Timeout:       30 * time.Second,
			SweepInterval: 10 * time.Second,
		},
		History:   HistoryConfig{Limit: 1000},
		Broadcast: BroadcastConfig{SubscriberBuffer: 256},
		Relay: RelayConfig{
			SourceURL:  "ws://192.168.4.1/ws",
			SinkURL:    "ws://localhost:8080/ws/ingest",
			Backoff:    5 * time.Second,
			QueueSize:  256,
			StatusAddr: ":8081",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// ARTEMIS_CONFIG is consulted and, failing that, only defaults and the
// environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	texts := map[string]*string{
		"ARTEMIS_LISTEN":      &c.Server.Listen,
		"ARTEMIS_GIN_MODE":    &c.Server.Mode,
		"ARTEMIS_SOURCE_URL":  &c.Relay.SourceURL,
		"ARTEMIS_SINK_URL":    &c.Relay.SinkURL,
		"ARTEMIS_STATUS_ADDR": &c.Relay.StatusAddr,
		"ARTEMIS_LOG_LEVEL":   &c.Log.Level,
		"ARTEMIS_LOG_FORMAT":  &c.Log.Format,
		"ARTEMIS_LOG_FILE":    &c.Log.File,
	}
	for key, dst := range texts {
		if val, ok := os.LookupEnv(key); ok {
			*dst = val
		}
	}

	durations := map[string]*time.Duration{
		"ARTEMIS_PRESENCE_TIMEOUT": &c.Presence.Timeout,
		"ARTEMIS_SWEEP_INTERVAL":   &c.Presence.SweepInterval,
		"ARTEMIS_RELAY_BACKOFF":    &c.Relay.Backoff,
	}
	for key, dst := range durations {
		if val := os.Getenv(key); val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"ARTEMIS_HISTORY_LIMIT":     &c.History.Limit,
		"ARTEMIS_SUBSCRIBER_BUFFER": &c.Broadcast.SubscriberBuffer,
		"ARTEMIS_QUEUE_SIZE":        &c.Relay.QueueSize,
	}
	for key, dst := range ints {
		if val := os.Getenv(key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
			}
			*dst = n
		}
	}
	return nil
}

// Validate reports the first setting that cannot work. Relay endpoints are
// checked by the relay itself, so the ingest server starts regardless.
func (c *Config) Validate() error {
	switch {
	case c.Presence.Timeout <= 0:
		return fmt.Errorf("%w: presence.timeout must be positive", ErrInvalid)
	case c.Presence.SweepInterval <= 0:
		return fmt.Errorf("%w: presence.sweep_interval must be positive", ErrInvalid)
	case c.History.Limit <= 0:
		return fmt.Errorf("%w: history.limit must be positive", ErrInvalid)
	case c.Broadcast.SubscriberBuffer <= 0:
		return fmt.Errorf("%w: broadcast.subscriber_buffer must be positive", ErrInvalid)
	case c.Relay.Backoff <= 0:
		return fmt.Errorf("%w: relay.backoff must be positive", ErrInvalid)
	case c.Relay.QueueSize <= 0:
		return fmt.Errorf("%w: relay.queue_size must be positive", ErrInvalid)
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("%w: server.mode %q", ErrInvalid, c.Server.Mode)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}
