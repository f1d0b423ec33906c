package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cfgpkg "github.com/rzbill/feedsub/internal/config"
	"github.com/rzbill/feedsub/internal/feed"
	"github.com/rzbill/feedsub/internal/gate"
	"github.com/rzbill/feedsub/internal/metrics"
	"github.com/rzbill/feedsub/internal/subscriber"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ErrStreamClosed is returned by subscribe when the feed stream ends and the
// on-close policy is exit.
var ErrStreamClosed = errors.New("feed stream closed")

const (
	minRestartBackoff = 250 * time.Millisecond
	maxRestartBackoff = 10 * time.Second
)

// newSubscribeCommand constructs the `subscribe` command.
func newSubscribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to the feed and print events as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("types") {
				cfg.EventTypes, _ = flags.GetStringSlice("types")
			}
			if flags.Changed("on-close") {
				cfg.OnClose, _ = flags.GetString("on-close")
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
			}
			if flags.Changed("ready-timeout") {
				d, _ := flags.GetDuration("ready-timeout")
				cfg.ReadyTimeoutMs = int(d / time.Millisecond)
			}
			if flags.Changed("check-health") {
				cfg.CheckHealth, _ = flags.GetBool("check-health")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			var from *uint64
			if flags.Changed("from-id") {
				id, _ := flags.GetUint64("from-id")
				from = subscriber.FromID(id)
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			return runSubscribe(cmd.Context(), subscribeOptions{
				Config: cfg,
				From:   from,
				Out:    cmd.OutOrStdout(),
				Logger: logger,
			})
		},
	}
	addCommonFlags(cmd)
	cmd.Flags().Uint64("from-id", 0, "Start at this event id (inclusive); default is live events only")
	cmd.Flags().StringSlice("types", nil, "Event types to receive (default merge_message)")
	cmd.Flags().String("on-close", cfgpkg.OnCloseExit, "When the stream closes: exit|restart")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().Duration("ready-timeout", 500*time.Millisecond, "How long to wait for the feed to become ready")
	cmd.Flags().Bool("check-health", false, "Require a SERVING grpc health check before subscribing")
	return cmd
}

type subscribeOptions struct {
	Config cfgpkg.Config
	From   *uint64
	Out    io.Writer
	Logger logpkg.Logger
}

// runSubscribe subscribes and supervises the stream according to the
// on-close policy until ctx is done. It returns nil on cancellation.
func runSubscribe(ctx context.Context, opts subscribeOptions) error {
	cfg := opts.Config
	types, err := cfg.Types()
	if err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	c, err := dialFeed(cfg)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	var obs subscriber.Observer
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		obs = metrics.New(reg)
		logger.Info("serving metrics", logpkg.Str("addr", cfg.MetricsAddr))
		eg.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr, reg) })
	}

	sub := subscriber.New(c, subscriber.Options{
		Gate:         gate.New(c.Conn(), gate.Options{CheckHealth: cfg.CheckHealth, HealthService: cfg.HealthService}),
		ReadyTimeout: cfg.ReadyTimeout(),
		EventTypes:   types,
		Logger:       logger,
		Observer:     obs,
	})
	enc := json.NewEncoder(opts.Out)
	sub.OnEvent(func(ev feed.Event) error { return enc.Encode(decodedEvent(ev)) })
	closed := make(chan subscriber.Termination, 1)
	sub.OnClose(func(t subscriber.Termination) {
		select {
		case closed <- t:
		default:
		}
	})

	eg.Go(func() error {
		defer sub.Wait()
		defer sub.Destroy()
		s := supervisor{
			sub:     sub,
			closed:  closed,
			restart: cfg.OnClose == cfgpkg.OnCloseRestart,
			backoff: backoff{min: minRestartBackoff, max: maxRestartBackoff},
			logger:  logger.With(logpkg.Component("subscribe")),
		}
		return s.run(ctx, opts.From)
	})
	return eg.Wait()
}

type supervisor struct {
	sub     *subscriber.Subscriber
	closed  <-chan subscriber.Termination
	restart bool
	backoff backoff
	logger  logpkg.Logger
}

// run starts the subscriber and reacts to each termination. Under the exit
// policy the first failure or closure is returned; under restart the stream
// resumes after the last delivered event.
func (s *supervisor) run(ctx context.Context, from *uint64) error {
	for {
		err := s.sub.Start(ctx, from)
		if err == nil {
			t, ok := s.awaitClose(ctx, s.sub.Streams())
			if !ok {
				return nil
			}
			if t.Delivered > 0 {
				from = subscriber.FromID(t.LastID + 1)
				s.backoff.reset()
			}
			if !s.restart {
				if t.Err != nil {
					return fmt.Errorf("%w after id %d: %v", ErrStreamClosed, t.LastID, t.Err)
				}
				return fmt.Errorf("%w after id %d", ErrStreamClosed, t.LastID)
			}
			err = t.Err
		}
		if ctx.Err() != nil {
			return nil
		}
		if !s.restart || errors.Is(err, subscriber.ErrDestroyed) {
			return err
		}
		d := s.backoff.next()
		fields := []logpkg.Field{logpkg.Dur("backoff", d)}
		if from != nil {
			fields = append(fields, logpkg.Uint64("from_id", *from))
		}
		if err != nil {
			fields = append(fields, logpkg.Err(err))
		}
		s.logger.Warn("restarting feed subscription", fields...)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
	}
}

// awaitClose waits for the termination of the given stream, skipping any
// notification left over from an earlier one.
func (s *supervisor) awaitClose(ctx context.Context, stream uint64) (subscriber.Termination, bool) {
	for {
		select {
		case <-ctx.Done():
			return subscriber.Termination{}, false
		case t := <-s.closed:
			if t.Stream == stream {
				return t, true
			}
			s.logger.Debug("ignoring close of an earlier stream", logpkg.Uint64("stream", t.Stream))
		}
	}
}

// backoff doubles from min up to max.
type backoff struct {
	min, max, cur time.Duration
}

func (b *backoff) next() time.Duration {
	switch {
	case b.cur == 0:
		b.cur = b.min
	case b.cur < b.max:
		b.cur *= 2
	}
	if b.cur > b.max {
		b.cur = b.max
	}
	return b.cur
}

func (b *backoff) reset() { b.cur = 0 }
