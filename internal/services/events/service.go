package eventsvc

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rzbill/feedsub/internal/eventlog"
	"github.com/rzbill/feedsub/internal/feed"
	"github.com/rzbill/feedsub/internal/runtime"
	logpkg "github.com/rzbill/feedsub/pkg/log"
)

const (
	// pollInterval bounds how long a caught-up subscriber sleeps between
	// checks of its context and the log.
	pollInterval = 50 * time.Millisecond
	readBatch    = 128
)

// ErrInvalidEventType is returned by Publish for EventTypeNone or an
// unnamed type.
var ErrInvalidEventType = errors.New("eventsvc: invalid event type")

// Retention bounds the feed log. Zero fields disable the matching trim.
type Retention struct {
	MaxEvents uint64
	MaxAge    time.Duration
}

// Options configure a Service.
type Options struct {
	Logger    logpkg.Logger
	Retention Retention
}

// Service publishes events to the runtime's feed log and streams them to
// subscribers in sequence order.
type Service struct {
	rt        *runtime.Runtime
	logger    logpkg.Logger
	retention Retention
	active    atomic.Int64
}

// New returns a Service over rt.
func New(rt *runtime.Runtime, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Service{rt: rt, logger: logger.With(logpkg.Component("events")), retention: opts.Retention}
}

// Sink is implemented by transports to receive streamed events.
type Sink interface {
	Send(*feed.Event) error
	Context() context.Context
}

// Publish appends one event and returns its id.
func (s *Service) Publish(ctx context.Context, t feed.EventType, payload []byte) (uint64, error) {
	if !t.Valid() {
		return 0, ErrInvalidEventType
	}
	t0 := time.Now()
	hdr := eventlog.Header{TimestampMs: t0.UnixMilli(), Type: uint8(t)}
	seqs, err := s.rt.Log().Append(ctx, []eventlog.AppendRecord{{Header: hdr.Encode(), Payload: payload}})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("events.publish",
		logpkg.Uint64("event_id", seqs[0]),
		logpkg.Str("event_type", t.String()),
		logpkg.Int("bytes", len(payload)),
		logpkg.Dur("dur", time.Since(t0)),
	)
	s.applyRetention(ctx)
	return seqs[0], nil
}

// applyRetention trims best-effort; failures are logged and publishing goes on.
func (s *Service) applyRetention(ctx context.Context) {
	l := s.rt.Log()
	if n := s.retention.MaxEvents; n > 0 {
		if _, err := l.TrimToCount(ctx, n, 0, 0); err != nil {
			s.logger.Warn("trim by count failed", logpkg.Err(err))
		}
	}
	if age := s.retention.MaxAge; age > 0 {
		if _, err := l.TrimOlderThan(ctx, time.Now().Add(-age).UnixMilli(), 0, 0); err != nil {
			s.logger.Warn("trim by age failed", logpkg.Err(err))
		}
	}
}

// ResolveStart maps a subscribe cursor to the first sequence to send. With
// no cursor the stream begins after the current last event; a cursor is
// inclusive.
func (s *Service) ResolveStart(from *uint64) uint64 {
	if from == nil {
		return s.rt.Log().LastSeq() + 1
	}
	return *from
}

// Subscribe streams matching events to sink until its context is done or a
// send fails. It returns the context error on cancellation.
func (s *Service) Subscribe(req *feed.SubscribeRequest, sink Sink) error {
	ctx := sink.Context()
	l := s.rt.Log()
	start := s.ResolveStart(req.FromID)

	s.active.Add(1)
	defer s.active.Add(-1)
	logger := s.logger.With(logpkg.Uint64("start", start), logpkg.Int("event_types", len(req.EventTypes)))
	logger.Info("subscriber attached")
	defer logger.Info("subscriber detached")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, next, err := l.Read(eventlog.ReadOptions{Start: start, Limit: readBatch})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			l.WaitForAppend(ctx, pollInterval)
			continue
		}
		for _, it := range items {
			h, err := eventlog.DecodeHeader(it.Header)
			if err != nil {
				logger.Warn("skipping event with bad header", logpkg.Uint64("event_id", it.Seq), logpkg.Err(err))
				continue
			}
			t := feed.EventType(h.Type)
			if !req.Matches(t) {
				continue
			}
			if err := sink.Send(&feed.Event{ID: it.Seq, Type: t, Payload: it.Payload}); err != nil {
				return err
			}
		}
		start = next
	}
}

// ActiveSubscribers returns the number of attached subscribers.
func (s *Service) ActiveSubscribers() int { return int(s.active.Load()) }

// CheckHealth reports storage health.
func (s *Service) CheckHealth(ctx context.Context) error { return s.rt.CheckHealth(ctx) }
