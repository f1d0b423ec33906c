package subscriber

import "github.com/rzbill/feedsub/internal/feed"

// Observer receives lifecycle and delivery observations, typically for
// metrics. Calls happen on the read loop goroutine and must not block.
type Observer interface {
	StreamOpened()
	StreamClosed(requested bool)
	EventReceived(t feed.EventType)
	ListenerFailed()
}

// NoopObserver is used when no observer is provided.
type NoopObserver struct{}

func (NoopObserver) StreamOpened()                {}
func (NoopObserver) StreamClosed(bool)            {}
func (NoopObserver) EventReceived(feed.EventType) {}
func (NoopObserver) ListenerFailed()              {}
