package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/rzbill/feedsub/internal/cmd/client"
	serverrun "github.com/rzbill/feedsub/internal/cmd/server"
	cfgpkg "github.com/rzbill/feedsub/internal/config"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// Respect FEEDSUB_LOG_LEVEL for output produced before a command builds its own logger.
	parsed, err := logpkg.ParseLevel(os.Getenv(cfgpkg.EnvPrefix + "LOG_LEVEL"))
	if err != nil {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:          "feedsub",
		Short:        "Feed subscriber CLI",
		Long:         "feedsub subscribes to a hub event feed over gRPC and prints events as JSON lines. It also runs a development feed server.",
		SilenceUsage: true,
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start a development feed server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			envFile, _ := flags.GetString("env-file")
			if err := cfgpkg.LoadEnvFile(envFile); err != nil {
				return err
			}
			path, _ := flags.GetString("config")
			cfg, err := cfgpkg.Load(path)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if flags.Changed("data-dir") {
				cfg.Server.DataDir, _ = flags.GetString("data-dir")
			}
			if flags.Changed("grpc") {
				cfg.Server.GRPCAddr, _ = flags.GetString("grpc")
			}
			if flags.Changed("fsync") {
				cfg.Server.Fsync, _ = flags.GetString("fsync")
			}
			if flags.Changed("retain-events") {
				cfg.Server.RetainEvents, _ = flags.GetUint64("retain-events")
			}
			if flags.Changed("retain-age") {
				d, _ := flags.GetDuration("retain-age")
				cfg.Server.RetainAgeMs = d.Milliseconds()
			}
			if flags.Changed("metrics-addr") {
				cfg.Server.MetricsAddr, _ = flags.GetString("metrics-addr")
			}
			if flags.Changed("log-level") {
				cfg.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-format") {
				cfg.LogFormat, _ = flags.GetString("log-format")
			}

			opts, err := serverrun.OptionsFromConfig(cfg.Server)
			if err != nil {
				return err
			}
			if flags.Changed("fsync-interval-ms") {
				ms, _ := flags.GetInt("fsync-interval-ms")
				opts.FsyncInterval = time.Duration(ms) * time.Millisecond
			}
			lc := cfg.LogConfig()
			procLogger, err := logpkg.ApplyConfig(&lc)
			if err != nil {
				return err
			}
			logpkg.RedirectStdLog(procLogger)
			opts.Logger = procLogger

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, opts); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Config file (JSON or YAML)")
	serverStartCmd.Flags().String("env-file", "", "dotenv file loaded before FEEDSUB_* variables are read")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("grpc", ":2283", "gRPC listen address")
	serverStartCmd.Flags().String("fsync", "interval", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	serverStartCmd.Flags().Uint64("retain-events", 0, "Keep at most this many events (0 keeps all)")
	serverStartCmd.Flags().Duration("retain-age", 0, "Drop events older than this (0 keeps all)")
	serverStartCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	clientcmd.AddCommands(rootCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
