package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/feedsub/internal/feed"
	"github.com/rzbill/feedsub/internal/gate"
	"github.com/rzbill/feedsub/internal/runtime"
	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
	"github.com/rzbill/feedsub/internal/subscriber"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1 << 20

type testServer struct {
	srv    *Server
	lis    *bufconn.Listener
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	ts := &testServer{
		srv:  New(rt, Options{Logger: logpkg.NewNopLogger(), HealthInterval: 20 * time.Millisecond}),
		lis:  bufconn.Listen(bufSize),
		done: make(chan error, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel
	go func() { ts.done <- ts.srv.Serve(ctx, ts.lis) }()
	t.Cleanup(ts.shutdown)
	return ts
}

func (ts *testServer) shutdown() {
	ts.once.Do(func() {
		ts.cancel()
		select {
		case <-ts.done:
		case <-time.After(5 * time.Second):
		}
	})
}

func (ts *testServer) dial(t *testing.T, compression string) *feed.Client {
	t.Helper()
	c, err := feed.Dial("passthrough:///bufnet", feed.DialOptions{
		Compression: compression,
		Extra: []grpc.DialOption{grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ts.lis.DialContext(ctx)
		})},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func TestHealthOverGRPC(t *testing.T) {
	ts := startServer(t)
	c := ts.dial(t, "")
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	hc := healthpb.NewHealthClient(c.Conn())
	for _, svc := range []string{"", feed.ServiceName} {
		res, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			t.Fatalf("check %q: %v", svc, err)
		}
		if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("service %q status %v", svc, res.GetStatus())
		}
	}
}

func TestPublishValidatesType(t *testing.T) {
	ts := startServer(t)
	c := ts.dial(t, "")
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := c.Publish(ctx, feed.EventTypeMergeMessage, []byte("hi"))
	if err != nil || id != 1 {
		t.Fatalf("publish: id=%d err=%v", id, err)
	}
	if _, err := c.Publish(ctx, feed.EventTypeNone, nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestSubscriberEndToEnd(t *testing.T) {
	for _, comp := range []string{feed.CompressionNone, feed.CompressionZstd} {
		t.Run("compression="+comp, func(t *testing.T) {
			ts := startServer(t)
			pub := ts.dial(t, "")
			defer pub.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			for i := 0; i < 3; i++ {
				if _, err := pub.Publish(ctx, feed.EventTypeMergeMessage, []byte{byte(i)}); err != nil {
					t.Fatalf("publish: %v", err)
				}
			}
			if _, err := pub.Publish(ctx, feed.EventTypePruneMessage, nil); err != nil {
				t.Fatalf("publish: %v", err)
			}

			c := ts.dial(t, comp)
			sub := subscriber.New(c, subscriber.Options{
				Gate:         gate.New(c.Conn(), gate.Options{CheckHealth: true, HealthService: feed.ServiceName}),
				ReadyTimeout: 2 * time.Second,
				Logger:       logpkg.NewNopLogger(),
			})
			defer sub.Destroy()

			var mu sync.Mutex
			var got []uint64
			five := make(chan struct{})
			sub.OnEvent(func(ev feed.Event) error {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, ev.ID)
				if ev.ID == 5 {
					close(five)
				}
				return nil
			})
			closed := make(chan subscriber.Termination, 1)
			sub.OnClose(func(term subscriber.Termination) { closed <- term })

			if err := sub.Start(ctx, subscriber.FromID(2)); err != nil {
				t.Fatalf("start: %v", err)
			}
			if _, err := pub.Publish(ctx, feed.EventTypeMergeMessage, []byte("live")); err != nil {
				t.Fatalf("publish live: %v", err)
			}
			select {
			case <-five:
			case <-ctx.Done():
				t.Fatalf("live event not delivered")
			}

			// Server shutdown ends the stream cleanly and unrequested.
			ts.shutdown()
			select {
			case term := <-closed:
				if term.Requested || term.Err != nil {
					t.Fatalf("want clean remote close, got %+v", term)
				}
				if term.LastID != 5 {
					t.Fatalf("want last id 5, got %d", term.LastID)
				}
			case <-ctx.Done():
				t.Fatalf("closure not observed")
			}
			sub.Wait()
			if !sub.Stopped() {
				t.Fatalf("expected stopped after server shutdown")
			}

			mu.Lock()
			defer mu.Unlock()
			// Cursor 2 is inclusive and the prune event (4) is filtered out.
			if len(got) != 3 || got[0] != 2 || got[1] != 3 || got[2] != 5 {
				t.Fatalf("want [2 3 5], got %v", got)
			}
		})
	}
}

func TestStartFailsNotReadyWhenServerGone(t *testing.T) {
	ts := startServer(t)
	c := ts.dial(t, "")
	ts.shutdown()
	_ = ts.lis.Close()

	sub := subscriber.New(c, subscriber.Options{
		Gate:         gate.New(c.Conn(), gate.Options{}),
		ReadyTimeout: 100 * time.Millisecond,
		Logger:       logpkg.NewNopLogger(),
	})
	defer sub.Destroy()
	err := sub.Start(context.Background(), nil)
	if !errors.Is(err, subscriber.ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}
	var ce *gate.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("want *gate.ConnectionError cause, got %T", errors.Unwrap(err))
	}
	if !sub.Stopped() {
		t.Fatalf("expected stopped")
	}
}
