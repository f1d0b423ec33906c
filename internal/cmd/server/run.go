package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cfgpkg "github.com/rzbill/feedsub/internal/config"
	"github.com/rzbill/feedsub/internal/metrics"
	"github.com/rzbill/feedsub/internal/runtime"
	grpcserver "github.com/rzbill/feedsub/internal/server/grpc"
	eventsvc "github.com/rzbill/feedsub/internal/services/events"
	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"golang.org/x/sync/errgroup"
)

const defaultFsyncInterval = 5 * time.Millisecond

type Options struct {
	DataDir       string
	GRPCAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Retention     eventsvc.Retention
	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string
	Logger      logpkg.Logger
}

// OptionsFromConfig converts the server section of a config file.
func OptionsFromConfig(sc cfgpkg.ServerConfig) (Options, error) {
	mode, err := pebblestore.ParseFsyncMode(sc.Fsync)
	if err != nil {
		return Options{}, err
	}
	if sc.RetainAgeMs < 0 {
		return Options{}, fmt.Errorf("server: retainAgeMs must not be negative")
	}
	return Options{
		DataDir:       sc.DataDir,
		GRPCAddr:      sc.GRPCAddr,
		Fsync:         mode,
		FsyncInterval: defaultFsyncInterval,
		MetricsAddr:   sc.MetricsAddr,
		Retention: eventsvc.Retention{
			MaxEvents: sc.RetainEvents,
			MaxAge:    time.Duration(sc.RetainAgeMs) * time.Millisecond,
		},
	}, nil
}

// Run opens the feed log and serves it over gRPC until ctx is cancelled or
// the process receives SIGINT/SIGTERM.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	var reg *prometheus.Registry
	var hook pebblestore.MetricsHook
	if opts.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		hook = metrics.NewStore(reg)
	}
	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval, Metrics: hook})
	if err != nil {
		return err
	}
	defer rt.Close()

	opts.Logger.Info("starting feed server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("metrics", opts.MetricsAddr),
		logpkg.Str("data_dir", storeDir),
		logpkg.Str("fsync", opts.Fsync.String()),
		logpkg.Uint64("retain_events", opts.Retention.MaxEvents),
		logpkg.Dur("retain_age", opts.Retention.MaxAge),
	)

	gsrv := grpcserver.New(rt, grpcserver.Options{Logger: opts.Logger, Retention: opts.Retention})
	eg, gctx := errgroup.WithContext(sctx)
	eg.Go(func() error {
		if err := gsrv.ListenAndServe(gctx, opts.GRPCAddr); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	if reg != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "feedsub",
			Subsystem: "server",
			Name:      "active_subscribers",
			Help:      "Open Subscribe streams.",
		}, func() float64 { return float64(gsrv.Service().ActiveSubscribers()) }))
		eg.Go(func() error { return metrics.Serve(gctx, opts.MetricsAddr, reg) })
	}
	err = eg.Wait()
	opts.Logger.Info("feed server stopped")
	return err
}
