package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rzbill/feedsub/internal/feed"
	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"gopkg.in/yaml.v3"
)

// DefaultAddr is the feed address used when none is configured.
const DefaultAddr = "127.0.0.1:2283"

// On-close policies for the subscribe command.
const (
	OnCloseExit    = "exit"
	OnCloseRestart = "restart"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// GRPCAddr is the feed endpoint the subscriber dials.
	GRPCAddr       string   `json:"grpcAddr" yaml:"grpcAddr"`
	ReadyTimeoutMs int      `json:"readyTimeoutMs" yaml:"readyTimeoutMs"`
	CheckHealth    bool     `json:"checkHealth" yaml:"checkHealth"`
	HealthService  string   `json:"healthService" yaml:"healthService"`
	EventTypes     []string `json:"eventTypes" yaml:"eventTypes"`
	Compression    string   `json:"compression" yaml:"compression"`
	// OnClose is exit or restart.
	OnClose     string `json:"onClose" yaml:"onClose"`
	MetricsAddr string `json:"metricsAddr" yaml:"metricsAddr"`
	LogLevel    string `json:"logLevel" yaml:"logLevel"`
	LogFormat   string `json:"logFormat" yaml:"logFormat"`

	Server ServerConfig `json:"server" yaml:"server"`
}

// ServerConfig configures the development feed server.
type ServerConfig struct {
	GRPCAddr     string `json:"grpcAddr" yaml:"grpcAddr"`
	DataDir      string `json:"dataDir" yaml:"dataDir"`
	Fsync        string `json:"fsync" yaml:"fsync"`
	RetainEvents uint64 `json:"retainEvents" yaml:"retainEvents"`
	RetainAgeMs  int64  `json:"retainAgeMs" yaml:"retainAgeMs"`
	MetricsAddr  string `json:"metricsAddr" yaml:"metricsAddr"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		GRPCAddr:       DefaultAddr,
		ReadyTimeoutMs: 500,
		EventTypes:     []string{feed.EventTypeMergeMessage.String()},
		OnClose:        OnCloseExit,
		LogLevel:       "info",
		LogFormat:      "text",
		Server: ServerConfig{
			GRPCAddr: ":2283",
			DataDir:  DefaultDataDir(),
			Fsync:    pebblestore.FsyncModeInterval.String(),
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// the defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ReadyTimeout returns the readiness timeout as a duration.
func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMs) * time.Millisecond
}

// Types parses EventTypes.
func (c Config) Types() ([]feed.EventType, error) { return feed.ParseEventTypes(c.EventTypes) }

// LogConfig returns the logging section in the form pkg/log expects.
func (c Config) LogConfig() logpkg.Config {
	return logpkg.Config{Level: c.LogLevel, Format: c.LogFormat}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.GRPCAddr) == "" {
		return fmt.Errorf("config: grpcAddr is required")
	}
	if c.ReadyTimeoutMs < 0 {
		return fmt.Errorf("config: readyTimeoutMs must not be negative")
	}
	if _, err := c.Types(); err != nil {
		return fmt.Errorf("config: eventTypes: %w", err)
	}
	if !feed.ValidCompression(c.Compression) {
		return fmt.Errorf("config: unsupported compression %q", c.Compression)
	}
	switch c.OnClose {
	case OnCloseExit, OnCloseRestart:
	default:
		return fmt.Errorf("config: onClose must be %s or %s, got %q", OnCloseExit, OnCloseRestart, c.OnClose)
	}
	if _, err := logpkg.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.LogFormat {
	case "json", "text", "":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if _, err := pebblestore.ParseFsyncMode(c.Server.Fsync); err != nil {
		return fmt.Errorf("config: server: %w", err)
	}
	if c.Server.RetainAgeMs < 0 {
		return fmt.Errorf("config: server: retainAgeMs must not be negative")
	}
	return nil
}
