// Package config loads feedsub configuration. It exposes a Default()
// baseline, JSON or YAML files, a dotenv loader and a FEEDSUB_* environment
// overlay. Command-line flags are applied on top by the CLI.
//
// Example:
//
//	_ = config.LoadEnvFile(".env")
//	cfg, err := config.Load("/etc/feedsub.yaml")
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
package config
