// Package subscriber keeps one live Subscribe stream against a feed service
// and republishes every event it reads to in-process listeners.
//
// Lifecycle
//
//	s := subscriber.New(client, subscriber.Options{Gate: gate.New(client.Conn(), gate.Options{})})
//	s.OnEvent(func(ev feed.Event) error { return index(ev) })
//	s.OnClose(func(t subscriber.Termination) { restartOrExit(t) })
//	if err := s.Start(ctx, subscriber.FromID(42)); err != nil {
//	    // *SubscribeError: errors.Is(err, subscriber.ErrNotReady) or ErrRPCFailed
//	}
//	...
//	s.Destroy()
//
// Start returns as soon as the stream is open. A single read loop per stream
// pulls events and calls listeners synchronously, in registration order, so
// throughput is bounded by listener work plus transport latency. Listener
// errors and panics are logged and counted, never propagated.
//
// When the stream ends for any reason (remote close, transport error, Stop,
// Destroy) the subscriber flips back to stopped exactly once and every
// OnClose callback runs exactly once for that stream. Nothing here reconnects;
// that policy belongs to the owner, which decides from the Termination.
package subscriber
