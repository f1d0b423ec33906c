package eventsvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/feedsub/internal/feed"
	"github.com/rzbill/feedsub/internal/runtime"
	pebblestore "github.com/rzbill/feedsub/internal/storage/pebble"
	logpkg "github.com/rzbill/feedsub/pkg/log"
)

func newTestService(t *testing.T, ret Retention) *Service {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return New(rt, Options{Logger: logpkg.NewNopLogger(), Retention: ret})
}

type captureSink struct {
	ctx context.Context
	mu  sync.Mutex
	got []feed.Event
}

func (c *captureSink) Send(ev *feed.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, *ev)
	return nil
}

func (c *captureSink) Context() context.Context { return c.ctx }

func (c *captureSink) ids() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.got))
	for i, ev := range c.got {
		out[i] = ev.ID
	}
	return out
}

func publish(t *testing.T, s *Service, et feed.EventType, n int) []uint64 {
	t.Helper()
	ids := make([]uint64, n)
	for i := range ids {
		id, err := s.Publish(context.Background(), et, []byte{byte(i)})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		ids[i] = id
	}
	return ids
}

func waitForCount(t *testing.T, sink *captureSink, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(sink.ids()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("want %d events, got %v", n, sink.ids())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishRejectsInvalidType(t *testing.T) {
	s := newTestService(t, Retention{})
	for _, et := range []feed.EventType{feed.EventTypeNone, feed.EventType(42)} {
		if _, err := s.Publish(context.Background(), et, nil); !errors.Is(err, ErrInvalidEventType) {
			t.Fatalf("type %d: want ErrInvalidEventType, got %v", et, err)
		}
	}
}

func TestSubscribeFromCursorInclusiveWithTypeFilter(t *testing.T) {
	s := newTestService(t, Retention{})
	publish(t, s, feed.EventTypeMergeMessage, 3) // 1..3
	publish(t, s, feed.EventTypePruneMessage, 1) // 4
	publish(t, s, feed.EventTypeMergeMessage, 1) // 5

	ctx, cancel := context.WithCancel(context.Background())
	sink := &captureSink{ctx: ctx}
	from := uint64(2)
	done := make(chan error, 1)
	go func() {
		done <- s.Subscribe(&feed.SubscribeRequest{EventTypes: []feed.EventType{feed.EventTypeMergeMessage}, FromID: &from}, sink)
	}()

	waitForCount(t, sink, 3)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	got := sink.ids()
	if len(got) != 3 || got[0] != 2 || got[1] != 3 || got[2] != 5 {
		t.Fatalf("want [2 3 5], got %v", got)
	}
	if s.ActiveSubscribers() != 0 {
		t.Fatalf("subscriber count not released")
	}
}

func TestSubscribeWithoutCursorStartsAfterLast(t *testing.T) {
	s := newTestService(t, Retention{})
	publish(t, s, feed.EventTypeMergeMessage, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &captureSink{ctx: ctx}
	go func() { _ = s.Subscribe(&feed.SubscribeRequest{}, sink) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.ActiveSubscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never attached")
		}
		time.Sleep(time.Millisecond)
	}
	publish(t, s, feed.EventTypeRevokeMessage, 1)
	waitForCount(t, sink, 1)
	if got := sink.ids(); got[0] != 3 {
		t.Fatalf("want first live event 3, got %v", got)
	}
}

func TestRetentionByCount(t *testing.T) {
	s := newTestService(t, Retention{MaxEvents: 2})
	publish(t, s, feed.EventTypeMergeMessage, 5)
	first, err := s.rt.Log().FirstSeq()
	if err != nil {
		t.Fatalf("first seq: %v", err)
	}
	if first != 4 {
		t.Fatalf("want oldest retained 4, got %d", first)
	}
	if s.ResolveStart(nil) != 6 {
		t.Fatalf("live start moved by trim: %d", s.ResolveStart(nil))
	}
}
