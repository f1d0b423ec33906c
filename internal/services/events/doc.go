// Package eventsvc implements the development feed on top of the internal
// event log: publish with optional retention trims, and subscribe from a
// cursor with event type filtering. Transports adapt it through Sink.
//
//	svc := eventsvc.New(rt, eventsvc.Options{Retention: eventsvc.Retention{MaxEvents: 100000}})
//	id, _ := svc.Publish(ctx, feed.EventTypeMergeMessage, payload)
//	_ = svc.Subscribe(&feed.SubscribeRequest{FromID: &id}, mySink)
package eventsvc
