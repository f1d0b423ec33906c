package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "FEEDSUB_"

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are left alone.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

// FromEnv overlays FEEDSUB_* environment variables onto cfg. Unparseable
// values are ignored.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	str("ADDR", &cfg.GRPCAddr)
	str("HEALTH_SERVICE", &cfg.HealthService)
	str("COMPRESSION", &cfg.Compression)
	str("ON_CLOSE", &cfg.OnClose)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("SERVER_ADDR", &cfg.Server.GRPCAddr)
	str("DATA_DIR", &cfg.Server.DataDir)
	str("FSYNC", &cfg.Server.Fsync)
	str("SERVER_METRICS_ADDR", &cfg.Server.MetricsAddr)

	if v := os.Getenv(EnvPrefix + "READY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReadyTimeoutMs = n
		}
	}
	if v := os.Getenv(EnvPrefix + "CHECK_HEALTH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CheckHealth = b
		}
	}
	if v := os.Getenv(EnvPrefix + "EVENT_TYPES"); v != "" {
		cfg.EventTypes = SplitList(v)
	}
	if v := os.Getenv(EnvPrefix + "RETAIN_EVENTS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Server.RetainEvents = n
		}
	}
	if v := os.Getenv(EnvPrefix + "RETAIN_AGE_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.RetainAgeMs = n
		}
	}
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
