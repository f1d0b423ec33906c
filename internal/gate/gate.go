// Package gate waits for a gRPC channel to become usable before a caller
// commits to opening streams on it.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ErrShutdown is the cause reported when the channel has been closed.
var ErrShutdown = errors.New("connection is shut down")

// ConnectionError reports that the feed was not reachable in time.
type ConnectionError struct {
	// State is the last connectivity state observed.
	State connectivity.State
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("feed not ready (state %s): %v", e.State, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// Conn is the subset of *grpc.ClientConn the gate relies on.
type Conn interface {
	GetState() connectivity.State
	WaitForStateChange(ctx context.Context, source connectivity.State) bool
	Connect()
}

// Options tune the gate.
type Options struct {
	// CheckHealth issues a grpc.health.v1 Check once the transport is ready.
	CheckHealth bool
	// HealthService is the service name sent in the health check; "" asks
	// about the server as a whole.
	HealthService string
}

// Gate holds no state between calls; WaitReady may be called any number of
// times, concurrently.
type Gate struct {
	conn   Conn
	health healthpb.HealthClient
	opts   Options
}

// New builds a gate over a real client connection.
func New(cc *grpc.ClientConn, opts Options) *Gate {
	g := &Gate{conn: cc, opts: opts}
	if opts.CheckHealth {
		g.health = healthpb.NewHealthClient(cc)
	}
	return g
}

// NewWithConn builds a transport-only gate over any Conn.
func NewWithConn(c Conn) *Gate { return &Gate{conn: c} }

// WaitReady blocks until the channel is READY or timeout elapses, whichever
// comes first. A non-positive timeout waits until ctx is done.
func (g *Gate) WaitReady(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	state := g.conn.GetState()
	for state != connectivity.Ready {
		switch state {
		case connectivity.Shutdown:
			return &ConnectionError{State: state, Cause: ErrShutdown}
		case connectivity.Idle:
			g.conn.Connect()
		}
		if !g.conn.WaitForStateChange(ctx, state) {
			return &ConnectionError{State: state, Cause: ctx.Err()}
		}
		state = g.conn.GetState()
	}
	if g.health == nil {
		return nil
	}
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: g.opts.HealthService})
	if err != nil {
		return &ConnectionError{State: state, Cause: fmt.Errorf("health check: %w", err)}
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return &ConnectionError{State: state, Cause: fmt.Errorf("health status %s", resp.GetStatus())}
	}
	return nil
}
