package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rzbill/feedsub/internal/feed"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.GRPCAddr != DefaultAddr {
		t.Fatalf("default addr %q", cfg.GRPCAddr)
	}
	if cfg.ReadyTimeout() != 500*time.Millisecond {
		t.Fatalf("default ready timeout %s", cfg.ReadyTimeout())
	}
	types, err := cfg.Types()
	if err != nil || len(types) != 1 || types[0] != feed.EventTypeMergeMessage {
		t.Fatalf("default types %v %v", types, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return file
}

func TestLoadJSON(t *testing.T) {
	file := writeFile(t, "feedsub.json", `{"grpcAddr":"hub:2283","eventTypes":["merge_message","prune_message"],"onClose":"restart","server":{"retainEvents":10}}`)
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GRPCAddr != "hub:2283" || cfg.OnClose != OnCloseRestart || len(cfg.EventTypes) != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Server.RetainEvents != 10 || cfg.Server.Fsync != "interval" {
		t.Fatalf("server section not merged over defaults: %+v", cfg.Server)
	}
	if cfg.ReadyTimeoutMs != 500 {
		t.Fatalf("unset field lost its default: %d", cfg.ReadyTimeoutMs)
	}
}

func TestLoadYAML(t *testing.T) {
	file := writeFile(t, "feedsub.yaml", `
grpcAddr: hub:3383
readyTimeoutMs: 1500
checkHealth: true
compression: zstd
eventTypes:
  - merge_on_chain_event
server:
  dataDir: /tmp/feed
  fsync: always
`)
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GRPCAddr != "hub:3383" || cfg.ReadyTimeout() != 1500*time.Millisecond || !cfg.CheckHealth {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Compression != "zstd" || cfg.EventTypes[0] != "merge_on_chain_event" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Server.DataDir != "/tmp/feed" || cfg.Server.Fsync != "always" {
		t.Fatalf("unexpected server cfg: %+v", cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadRejectsBadFile(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.json", `{`)); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("FEEDSUB_ADDR", "env:2283")
	t.Setenv("FEEDSUB_READY_TIMEOUT_MS", "250")
	t.Setenv("FEEDSUB_CHECK_HEALTH", "true")
	t.Setenv("FEEDSUB_EVENT_TYPES", "merge_message, revoke_message,")
	t.Setenv("FEEDSUB_RETAIN_EVENTS", "not-a-number")
	t.Setenv("FEEDSUB_FSYNC", "never")

	cfg := Default()
	FromEnv(&cfg)
	if cfg.GRPCAddr != "env:2283" || cfg.ReadyTimeoutMs != 250 || !cfg.CheckHealth {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.EventTypes) != 2 || cfg.EventTypes[1] != "revoke_message" {
		t.Fatalf("event types: %v", cfg.EventTypes)
	}
	if cfg.Server.RetainEvents != 0 {
		t.Fatalf("bad number should be ignored")
	}
	if cfg.Server.Fsync != "never" {
		t.Fatalf("fsync override: %q", cfg.Server.Fsync)
	}
}

func TestLoadEnvFile(t *testing.T) {
	file := writeFile(t, ".env", "FEEDSUB_METRICS_ADDR=:9191\nFEEDSUB_ON_CLOSE=restart\n")
	t.Setenv("FEEDSUB_ON_CLOSE", "exit")
	t.Setenv("FEEDSUB_METRICS_ADDR", "")
	os.Unsetenv("FEEDSUB_METRICS_ADDR")

	if err := LoadEnvFile(file); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	cfg := Default()
	FromEnv(&cfg)
	if cfg.MetricsAddr != ":9191" {
		t.Fatalf("env file value not loaded: %q", cfg.MetricsAddr)
	}
	if cfg.OnClose != OnCloseExit {
		t.Fatalf("existing env must win over env file, got %q", cfg.OnClose)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.GRPCAddr = "" }, "grpcAddr"},
		{"negative timeout", func(c *Config) { c.ReadyTimeoutMs = -1 }, "readyTimeoutMs"},
		{"unknown type", func(c *Config) { c.EventTypes = []string{"gossip"} }, "eventTypes"},
		{"compression", func(c *Config) { c.Compression = "lz4" }, "compression"},
		{"on close", func(c *Config) { c.OnClose = "panic" }, "onClose"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"fsync", func(c *Config) { c.Server.Fsync = "sometimes" }, "fsync"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("want error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
