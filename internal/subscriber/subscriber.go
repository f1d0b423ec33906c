package subscriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rzbill/feedsub/internal/feed"
	logpkg "github.com/rzbill/feedsub/pkg/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultReadyTimeout bounds the readiness wait inside Start.
const DefaultReadyTimeout = 500 * time.Millisecond

// Feed is the client side of a feed service. *feed.Client implements it.
type Feed interface {
	Subscribe(ctx context.Context, req feed.SubscribeRequest) (feed.EventStream, error)
	Close() error
}

// Readiness waits for the feed's transport. *gate.Gate implements it.
type Readiness interface {
	WaitReady(ctx context.Context, timeout time.Duration) error
}

// Options configure a Subscriber.
type Options struct {
	// Gate is consulted at the start of every Start. Nil skips the check.
	Gate Readiness
	// ReadyTimeout defaults to DefaultReadyTimeout.
	ReadyTimeout time.Duration
	// EventTypes restricts the subscription; defaults to merge messages.
	EventTypes []feed.EventType
	Logger     logpkg.Logger
	Observer   Observer
}

// Termination describes how a stream ended. It is passed to OnClose
// callbacks and never returned from a call.
type Termination struct {
	// Err is nil for a clean end of stream or a cancellation, otherwise the
	// transport error that ended the stream.
	Err error
	// Requested is true when Stop or Destroy initiated the termination.
	Requested bool
	// LastID is the id of the last event delivered on this stream, 0 if none.
	LastID uint64
	// Delivered counts events delivered on this stream.
	Delivered uint64
	// Stream is the sequence of the stream that ended, starting at 1. It
	// matches Streams() right after the Start that opened it.
	Stream uint64
}

// FromID returns a cursor for Start.
func FromID(id uint64) *uint64 { return &id }

// Subscriber owns the subscription lifecycle for one feed connection.
type Subscriber struct {
	feed         Feed
	gate         Readiness
	readyTimeout time.Duration
	eventTypes   []feed.EventType
	logger       logpkg.Logger
	observer     Observer
	id           string

	// baseCtx parents every stream so streams outlive the Start call.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	// mu guards the state below. stopped == (handle == nil) always holds.
	mu        sync.Mutex
	stopped   bool
	handle    *handle
	starting  bool
	destroyed bool
	// epoch is bumped by Stop so an in-flight Start can tell it lost a race.
	epoch uint64
	// last is the most recently installed handle; Start waits for it to
	// finish delivering before opening another stream.
	last    *handle
	streams uint64

	events   registry[EventFunc]
	closures registry[CloseFunc]

	wg sync.WaitGroup
}

// handle is one open stream. It is terminal: once ended it is discarded.
// loopDone closes when the read loop stops reading, done once the close
// notification has been delivered.
type handle struct {
	seq       uint64
	stream    feed.EventStream
	ctx       context.Context
	cancel    context.CancelFunc
	once      sync.Once
	requested atomic.Bool
	loopDone  chan struct{}
	done      chan struct{}
	lastID    atomic.Uint64
	delivered atomic.Uint64
}

// New returns a stopped Subscriber over f. The connection behind f is shared
// by every stream this subscriber opens and is only closed by Destroy.
func New(f Feed, opts Options) *Subscriber {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if len(opts.EventTypes) == 0 {
		opts.EventTypes = []feed.EventType{feed.EventTypeMergeMessage}
	}
	if opts.Observer == nil {
		opts.Observer = NoopObserver{}
	}
	id := uuid.NewString()
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		feed:         f,
		gate:         opts.Gate,
		readyTimeout: opts.ReadyTimeout,
		eventTypes:   append([]feed.EventType(nil), opts.EventTypes...),
		logger:       opts.Logger.With(logpkg.Component("subscriber"), logpkg.Str("subscriber_id", id)),
		observer:     opts.Observer,
		id:           id,
		baseCtx:      ctx,
		baseCancel:   cancel,
		stopped:      true,
	}
}

// ID identifies this subscriber instance in logs.
func (s *Subscriber) ID() string { return s.id }

// OnEvent registers fn for every event read from the stream.
func (s *Subscriber) OnEvent(fn EventFunc) *Listener { return s.events.add(fn) }

// OnClose registers fn for stream terminations.
func (s *Subscriber) OnClose(fn CloseFunc) *Listener { return s.closures.add(fn) }

// Stopped reports whether no stream is active.
func (s *Subscriber) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Start waits for the feed to be ready, opens a stream from the given cursor
// (nil for the feed default) and returns once the stream is open. Reading
// happens on a separate goroutine. ctx bounds only the start-up work.
//
// A previous stream's listeners and close callbacks finish before the new
// stream delivers anything, so Start must not be called from a listener or
// close callback.
func (s *Subscriber) Start(ctx context.Context, from *uint64) error {
	s.mu.Lock()
	switch {
	case s.destroyed:
		s.mu.Unlock()
		return ErrDestroyed
	case !s.stopped || s.starting:
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.starting = true
	epoch := s.epoch
	prev := s.last
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	logger := s.logger
	if from != nil {
		logger = logger.With(logpkg.Uint64("from_id", *from))
	}
	logger.Info("starting subscriber")

	if s.gate != nil {
		if err := s.gate.WaitReady(ctx, s.readyTimeout); err != nil {
			logger.Error("failed to connect to feed", logpkg.Err(err))
			return &SubscribeError{Kind: NotReady, Cause: err}
		}
		logger.Info("connected to feed")
	}

	req := feed.SubscribeRequest{EventTypes: append([]feed.EventType(nil), s.eventTypes...)}
	if from != nil {
		req.FromID = FromID(*from)
	}
	streamCtx, cancel := context.WithCancel(s.baseCtx)
	// The caller's ctx may abort the subscribe call but not the stream.
	detach := context.AfterFunc(ctx, cancel)
	stream, err := s.feed.Subscribe(streamCtx, req)
	if !detach() {
		err = errors.Join(err, ctx.Err())
	}
	if err != nil {
		cancel()
		logger.Error("error starting feed stream", logpkg.Err(err))
		return &SubscribeError{Kind: RPCFailed, Cause: err}
	}

	h := &handle{stream: stream, ctx: streamCtx, cancel: cancel, loopDone: make(chan struct{}), done: make(chan struct{})}
	s.mu.Lock()
	if s.destroyed || s.epoch != epoch {
		s.mu.Unlock()
		cancel()
		logger.Info("subscriber stopped before stream was installed")
		return ErrStopped
	}
	s.stopped = false
	s.handle = h
	s.streams++
	h.seq = s.streams
	s.last = h
	s.wg.Add(2)
	s.mu.Unlock()

	s.observer.StreamOpened()
	logger.Info("subscribed to feed events", logpkg.Uint64("stream", h.seq), logpkg.Int("event_types", len(req.EventTypes)))
	// The watcher is registered first so a remote close is noticed even
	// before the first event arrives.
	go s.watchClosure(h)
	go s.readLoop(h)
	return nil
}

// Stop cancels the active stream, if any. It is idempotent and does not wait
// for the read loop; the connection stays open for a later Start.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.stopped = true
	s.epoch++
	s.mu.Unlock()
	if h == nil {
		return
	}
	h.requested.Store(true)
	h.cancel()
	s.logger.Info("stopped subscriber")
}

// Destroy stops the subscriber and closes the feed connection. The
// subscriber must not be used afterwards; Start returns ErrDestroyed.
func (s *Subscriber) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()

	if !s.Stopped() {
		s.Stop()
	} else {
		// Still bump the epoch so a Start in flight gives up its stream.
		s.mu.Lock()
		s.epoch++
		s.mu.Unlock()
	}
	s.baseCancel()
	if err := s.feed.Close(); err != nil {
		s.logger.Warn("closing feed connection", logpkg.Err(err))
	}
	s.logger.Info("destroyed subscriber")
}

// Streams returns how many streams have been opened, which is also the
// Termination.Stream of the most recent one.
func (s *Subscriber) Streams() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams
}

// Wait blocks until the goroutines of every stream started so far have
// exited. It must not be called from a listener or close callback.
func (s *Subscriber) Wait() { s.wg.Wait() }

// watchClosure ends the handle as soon as the stream context is done,
// whichever side caused it.
func (s *Subscriber) watchClosure(h *handle) {
	defer s.wg.Done()
	select {
	case <-h.stream.Context().Done():
		s.logger.Debug("feed stream context done")
		s.terminate(h)
	case <-h.loopDone:
	}
}

// terminate transitions the subscriber to stopped for h exactly once, regardless
// of how many paths notice the termination.
func (s *Subscriber) terminate(h *handle) {
	h.once.Do(func() {
		s.mu.Lock()
		if s.handle == h {
			s.handle = nil
			s.stopped = true
		}
		s.mu.Unlock()
		h.cancel()
	})
}

func (s *Subscriber) readLoop(h *handle) {
	defer s.wg.Done()
	defer close(h.done)
	s.logger.Debug("started feed event stream processing")

	var recvErr error
	for {
		ev, err := h.stream.Recv()
		if err != nil {
			recvErr = err
			break
		}
		if h.ctx.Err() != nil {
			// Cancellation was requested; drop anything still in flight.
			recvErr = h.ctx.Err()
			break
		}
		h.lastID.Store(ev.ID)
		h.delivered.Add(1)
		s.observer.EventReceived(ev.Type)
		s.logger.Debug("processing event", logpkg.Uint64("event_id", ev.ID), logpkg.Str("event_type", ev.Type.String()))
		s.emit(*ev)
	}
	close(h.loopDone)
	s.terminate(h)

	t := Termination{
		Err:       streamError(recvErr),
		Requested: h.requested.Load(),
		LastID:    h.lastID.Load(),
		Delivered: h.delivered.Load(),
		Stream:    h.seq,
	}
	fields := []logpkg.Field{
		logpkg.Uint64("stream", t.Stream),
		logpkg.Bool("requested", t.Requested),
		logpkg.Uint64("last_id", t.LastID),
		logpkg.Uint64("delivered", t.Delivered),
	}
	if t.Err != nil {
		s.logger.Warn("feed event stream processing halted", append(fields, logpkg.Err(t.Err))...)
	} else {
		s.logger.Info("feed stream closed", fields...)
	}
	s.observer.StreamClosed(t.Requested)
	s.notifyClosed(t)
}

// streamError maps end-of-stream and cancellation to a clean termination.
func streamError(err error) error {
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		return nil
	case status.Code(err) == codes.Canceled:
		return nil
	}
	return err
}

func (s *Subscriber) emit(ev feed.Event) {
	for _, l := range s.events.snapshot() {
		if err := callEvent(l.fn, ev); err != nil {
			s.observer.ListenerFailed()
			s.logger.Warn("event listener failed",
				logpkg.Uint64("listener", l.id),
				logpkg.Uint64("event_id", ev.ID),
				logpkg.Err(err),
			)
		}
	}
}

func callEvent(fn EventFunc, ev feed.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ev)
}

func (s *Subscriber) notifyClosed(t Termination) {
	for _, l := range s.closures.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("close listener panicked", logpkg.Uint64("listener", l.id), logpkg.Any("panic", r))
				}
			}()
			l.fn(t)
		}()
	}
}
