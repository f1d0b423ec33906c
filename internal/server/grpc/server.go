package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rzbill/feedsub/internal/feed"
	"github.com/rzbill/feedsub/internal/runtime"
	eventsvc "github.com/rzbill/feedsub/internal/services/events"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultHealthInterval = time.Second

// Options configure the server.
type Options struct {
	Logger    logpkg.Logger
	Retention eventsvc.Retention
	// HealthInterval is how often storage health is probed for the gRPC
	// health service.
	HealthInterval time.Duration
}

// Server owns the gRPC server instance and the feed service.
type Server struct {
	rt     *runtime.Runtime
	svc    *eventsvc.Service
	grpc   *grpc.Server
	health *health.Server
	logger logpkg.Logger

	healthInterval time.Duration
	shutdown       context.Context
	stop           context.CancelFunc
}

// New constructs a gRPC server and registers the feed and health services.
func New(rt *runtime.Runtime, opts Options, grpcOpts ...grpc.ServerOption) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}
	shutdown, stop := context.WithCancel(context.Background())
	s := &Server{
		rt:             rt,
		svc:            eventsvc.New(rt, eventsvc.Options{Logger: logger, Retention: opts.Retention}),
		grpc:           grpc.NewServer(grpcOpts...),
		health:         health.NewServer(),
		logger:         logger.With(logpkg.Component("grpc")),
		healthInterval: opts.HealthInterval,
		shutdown:       shutdown,
		stop:           stop,
	}
	feed.RegisterFeedServer(s.grpc, &feedSvc{svc: s.svc, shutdown: shutdown})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.updateHealth(context.Background())
	return s
}

// Service exposes the feed service, mainly for tests and tooling.
func (s *Server) Service() *eventsvc.Service { return s.svc }

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("feed server listening", logpkg.Str("addr", l.Addr().String()))
	return s.Serve(ctx, l)
}

// Serve serves on lis until ctx is done, then reports NOT_SERVING, ends open
// subscriptions and stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.grpc.Serve(lis) })
	g.Go(func() error {
		s.monitorHealth(gctx)
		s.Close()
		return nil
	})
	return g.Wait()
}

// Close stops the server. Safe to call more than once.
func (s *Server) Close() {
	s.health.Shutdown()
	s.stop()
	s.grpc.GracefulStop()
}

func (s *Server) monitorHealth(ctx context.Context) {
	t := time.NewTicker(s.healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.updateHealth(ctx)
		}
	}
}

func (s *Server) updateHealth(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := s.svc.CheckHealth(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("storage unhealthy", logpkg.Err(err))
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(feed.ServiceName, st)
}
