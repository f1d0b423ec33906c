package feed

import (
	"fmt"
	"strings"
)

// EventType enumerates feed event kinds. Values match the hub's wire enum.
type EventType uint8

const (
	EventTypeNone               EventType = 0
	EventTypeMergeMessage       EventType = 1
	EventTypePruneMessage       EventType = 2
	EventTypeRevokeMessage      EventType = 3
	EventTypeMergeUsernameProof EventType = 6
	EventTypeMergeOnChainEvent  EventType = 9
)

var eventTypeNames = map[EventType]string{
	EventTypeNone:               "none",
	EventTypeMergeMessage:       "merge_message",
	EventTypePruneMessage:       "prune_message",
	EventTypeRevokeMessage:      "revoke_message",
	EventTypeMergeUsernameProof: "merge_username_proof",
	EventTypeMergeOnChainEvent:  "merge_on_chain_event",
}

func (t EventType) String() string {
	if s, ok := eventTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("event_type(%d)", uint8(t))
}

// Valid reports whether t is a named type other than EventTypeNone.
func (t EventType) Valid() bool {
	_, ok := eventTypeNames[t]
	return ok && t != EventTypeNone
}

// IsMerge reports whether t is one of the merge event kinds.
func (t EventType) IsMerge() bool {
	return t == EventTypeMergeMessage || t == EventTypeMergeUsernameProof || t == EventTypeMergeOnChainEvent
}

// ParseEventType accepts the snake_case name of an event type.
func ParseEventType(s string) (EventType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range eventTypeNames {
		if name == s {
			return t, nil
		}
	}
	return EventTypeNone, fmt.Errorf("unknown event type %q", s)
}

// ParseEventTypes parses a list of names, rejecting duplicates and "none".
func ParseEventTypes(names []string) ([]EventType, error) {
	out := make([]EventType, 0, len(names))
	seen := make(map[EventType]bool, len(names))
	for _, n := range names {
		t, err := ParseEventType(n)
		if err != nil {
			return nil, err
		}
		if t == EventTypeNone {
			return nil, fmt.Errorf("event type %q cannot be subscribed to", n)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// Event is a single append-only record produced by the feed. Payload is opaque
// and owned by the feed's own schema. Events are shared read-only once observed.
type Event struct {
	ID      uint64    `cbor:"1,keyasint"`
	Type    EventType `cbor:"2,keyasint"`
	Payload []byte    `cbor:"3,keyasint,omitempty"`
}

// SubscribeRequest opens a server stream of events. A nil FromID asks the
// feed for its default start position (new events only for the dev server).
type SubscribeRequest struct {
	EventTypes []EventType `cbor:"1,keyasint,omitempty"`
	FromID     *uint64     `cbor:"2,keyasint,omitempty"`
}

// Matches reports whether t passes the request's type restriction. An empty
// restriction passes everything.
func (r SubscribeRequest) Matches(t EventType) bool {
	if len(r.EventTypes) == 0 {
		return true
	}
	for _, want := range r.EventTypes {
		if want == t {
			return true
		}
	}
	return false
}

// PublishRequest appends one event (development servers only).
type PublishRequest struct {
	Type    EventType `cbor:"1,keyasint"`
	Payload []byte    `cbor:"2,keyasint,omitempty"`
}

// PublishResponse carries the id assigned to a published event.
type PublishResponse struct {
	ID uint64 `cbor:"1,keyasint"`
}
