package subscriber

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start while a stream is open or
	// another Start is in flight.
	ErrAlreadyRunning = errors.New("subscriber: already running")
	// ErrDestroyed is returned by Start after Destroy.
	ErrDestroyed = errors.New("subscriber: destroyed")
	// ErrStopped is returned by Start when Stop or Destroy ran before the
	// new stream could be installed. The stream is cancelled.
	ErrStopped = errors.New("subscriber: stopped while starting")

	// ErrNotReady matches any *SubscribeError of kind NotReady via errors.Is.
	ErrNotReady = &SubscribeError{Kind: NotReady}
	// ErrRPCFailed matches any *SubscribeError of kind RPCFailed via errors.Is.
	ErrRPCFailed = &SubscribeError{Kind: RPCFailed}
)

// ErrorKind classifies a failed Start.
type ErrorKind int

const (
	// NotReady means the feed was unreachable within the readiness timeout.
	NotReady ErrorKind = iota + 1
	// RPCFailed means the subscribe call itself was rejected.
	RPCFailed
)

func (k ErrorKind) String() string {
	switch k {
	case NotReady:
		return "not ready"
	case RPCFailed:
		return "rpc failed"
	default:
		return "unknown"
	}
}

// SubscribeError is returned by Start when the stream could not be opened.
// The subscriber's state is unchanged.
type SubscribeError struct {
	Kind  ErrorKind
	Cause error
}

func (e *SubscribeError) Error() string {
	if e.Cause == nil {
		return "subscriber: " + e.Kind.String()
	}
	return fmt.Sprintf("subscriber: %s: %v", e.Kind, e.Cause)
}

func (e *SubscribeError) Unwrap() error { return e.Cause }

// Is matches the kind-only sentinels ErrNotReady and ErrRPCFailed.
func (e *SubscribeError) Is(target error) bool {
	t, ok := target.(*SubscribeError)
	return ok && t.Cause == nil && t.Kind == e.Kind
}
