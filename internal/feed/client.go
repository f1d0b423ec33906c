package feed

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// DialOptions configures Dial.
type DialOptions struct {
	// Compression selects a per-call compressor: "", "zstd" or "gzip".
	Compression string
	// KeepaliveTime pings an idle connection at this interval. Zero disables.
	KeepaliveTime time.Duration
	// Extra is appended to the dial options (e.g. a bufconn dialer in tests).
	Extra []grpc.DialOption
}

// EventStream is the client side of a Subscribe stream.
type EventStream interface {
	// Recv blocks until the next event, an error, or io.EOF at end of stream.
	Recv() (*Event, error)
	// Context is done once the stream has terminated for any reason.
	Context() context.Context
}

// Client talks to a FeedService over one shared connection.
type Client struct {
	conn     *grpc.ClientConn
	callOpts []grpc.CallOption
}

// Dial creates a client for addr. The connection is established lazily;
// use the gate package to wait for readiness.
func Dial(addr string, opts DialOptions) (*Client, error) {
	if !ValidCompression(opts.Compression) {
		return nil, fmt.Errorf("feed: unsupported compression %q", opts.Compression)
	}
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.KeepaliveTime > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepaliveTime,
			Timeout:             opts.KeepaliveTime / 2,
			PermitWithoutStream: true,
		}))
	}
	dialOpts = append(dialOpts, opts.Extra...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", addr, err)
	}
	return NewClient(conn, opts.Compression), nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn, compression string) *Client {
	callOpts := []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
	if compression != CompressionNone {
		callOpts = append(callOpts, grpc.UseCompressor(compression))
	}
	return &Client{conn: conn, callOpts: callOpts}
}

// Conn returns the underlying connection.
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

// Subscribe opens a server stream. The stream lives until ctx is cancelled,
// the server finishes, or the connection fails.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (EventStream, error) {
	cs, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod, c.callOpts...)
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(&req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &clientEventStream{cs: cs}, nil
}

// Publish appends one event and returns its id.
func (c *Client) Publish(ctx context.Context, t EventType, payload []byte) (uint64, error) {
	out := new(PublishResponse)
	if err := c.conn.Invoke(ctx, publishMethod, &PublishRequest{Type: t, Payload: payload}, out, c.callOpts...); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Close releases the connection. Streams opened on it fail with Canceled.
func (c *Client) Close() error { return c.conn.Close() }

type clientEventStream struct {
	cs grpc.ClientStream
}

func (s *clientEventStream) Recv() (*Event, error) {
	ev := new(Event)
	if err := s.cs.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *clientEventStream) Context() context.Context { return s.cs.Context() }
