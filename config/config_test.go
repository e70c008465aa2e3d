package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artemis.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Presence.Timeout != 30*time.Second || cfg.Presence.SweepInterval != 10*time.Second {
		t.Errorf("unexpected presence defaults %+v", cfg.Presence)
	}
	if cfg.History.Limit != 1000 || cfg.Relay.Backoff != 5*time.Second || cfg.Relay.QueueSize != 256 {
		t.Errorf("unexpected defaults %+v %+v", cfg.History, cfg.Relay)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9000"
presence:
  timeout: 45s
history:
  limit: 50
relay:
  source_url: ws://10.0.0.7/ws
  backoff: 2s
`)
	t.Setenv("ARTEMIS_HISTORY_LIMIT", "75")
	t.Setenv("ARTEMIS_SINK_URL", "wss://tracker.example/ws/ingest")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":9000" || cfg.Presence.Timeout != 45*time.Second || cfg.Relay.Backoff != 2*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Presence.SweepInterval != 10*time.Second {
		t.Errorf("unset file values should keep defaults, got %v", cfg.Presence.SweepInterval)
	}
	if cfg.History.Limit != 75 || cfg.Relay.SinkURL != "wss://tracker.example/ws/ingest" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.History, cfg.Relay)
	}
	if cfg.Relay.SourceURL != "ws://10.0.0.7/ws" {
		t.Errorf("unexpected source %q", cfg.Relay.SourceURL)
	}
}

func TestLoadPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, "history:\n  limit: 10\n"))
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.History.Limit != 10 {
		t.Fatalf("expected limit from %s file, got %d", EnvConfigPath, cfg.History.Limit)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"negative timeout": "presence:\n  timeout: -1s\n",
		"zero history":     "history:\n  limit: 0\n",
		"bad mode":         "server:\n  mode: loud\n",
		"bad format":       "log:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(EnvConfigPath, "")
			if _, err := Load(writeConfig(t, body)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("ARTEMIS_SWEEP_INTERVAL", "often")
	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestSetupLoggingRejectsLevel(t *testing.T) {
	if _, err := SetupLogging(LogConfig{Level: "chatty", Format: "text"}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSetupLoggingToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "artemis.log")
	closer, err := SetupLogging(LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		closer.Close()
		SetupLogging(LogConfig{Level: "info", Format: "text"})
	}()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestLoadLeavesRelayEndpointsToRelay(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("ARTEMIS_SINK_URL", "not a websocket url")
	cfg, err := Load(writeConfig(t, "relay:\n  source_url: http://10.0.0.7/ws\n"))
	if err != nil {
		t.Fatalf("relay endpoints must not block the ingest server: %v", err)
	}
	if cfg.Relay.SinkURL != "not a websocket url" {
		t.Fatalf("unexpected sink %q", cfg.Relay.SinkURL)
	}
}
