package client

import (
	"encoding/base64"
	"encoding/json"
	"time"
	"unicode/utf8"

	cfgpkg "github.com/rzbill/feedsub/internal/config"
	"github.com/rzbill/feedsub/internal/feed"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"github.com/spf13/cobra"
)

const keepaliveTime = 30 * time.Second

// dialFeed dials the feed endpoint in cfg with insecure transport for local/dev.
func dialFeed(cfg cfgpkg.Config) (*feed.Client, error) {
	return feed.Dial(cfg.GRPCAddr, feed.DialOptions{Compression: cfg.Compression, KeepaliveTime: keepaliveTime})
}

// loadConfig resolves configuration in order: defaults, --env-file, --config,
// FEEDSUB_* environment, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")
	if err := cfgpkg.LoadEnvFile(envFile); err != nil {
		return cfgpkg.Config{}, err
	}
	path, _ := flags.GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	if flags.Changed("addr") {
		cfg.GRPCAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("compression") {
		cfg.Compression, _ = flags.GetString("compression")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	return cfg, nil
}

// addCommonFlags registers the flags shared by every client command.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Config file (JSON or YAML)")
	cmd.Flags().String("env-file", "", "dotenv file loaded before FEEDSUB_* variables are read")
	cmd.Flags().String("addr", cfgpkg.DefaultAddr, "Feed gRPC address")
	cmd.Flags().String("compression", "", "Per-call compression: zstd|gzip (default none)")
	cmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	cmd.Flags().String("log-format", "", "Log format: text|json")
}

func buildLogger(cfg cfgpkg.Config) (logpkg.Logger, error) {
	lc := cfg.LogConfig()
	return logpkg.ApplyConfig(&lc)
}

// decodedEvent returns a map with id, type and one of payload_json,
// payload_text, or payload_b64.
func decodedEvent(ev feed.Event) map[string]any {
	out := map[string]any{
		"id":   ev.ID,
		"type": ev.Type.String(),
	}
	payload := ev.Payload
	if len(payload) == 0 {
		return out
	}
	// Try JSON first if it looks like JSON
	if payload[0] == '{' || payload[0] == '[' {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}
