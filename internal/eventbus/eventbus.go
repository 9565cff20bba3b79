// Package eventbus implements the publish/subscribe fan-out described in
// spec §4.7 (C7): clients call SUBS with an ident bitmask and thereafter
// receive lifecycle/status/config-change events as unsolicited frames on
// the subscription's correlation id.
//
// This generalizes the teacher's single-forwarding-target design
// (internal/daemon/instance.go forwarding PTY bytes to at most one
// attachedConn) to N independent subscribers, each filtered by its own
// ident bitmask, the way a pub/sub fan-out generalizes a single pointer.
package eventbus

import (
	"github.com/rs/xid"
)

// Ident bits a subscriber may combine (spec §4.7).
const (
	IdentDelta      = 1 // spawn/exit of any instance
	IdentStatus     = 2 // group status transitions
	IdentConfigDiff = 4 // UPDT config-change events
)

// Status codes carried in events, pinned per spec §6's table and the
// scenario in spec §8 item 5.
const (
	EventPendingSpawn    = 0
	EventRunning         = 1
	EventStopped         = 2
	EventSpawnInProgress = 4
	EventRemoved         = 5
)

// Event is one lifecycle/status/config-change notification.
type Event struct {
	Ident  int         // which bit this event belongs to (IdentDelta/Status/ConfigDiff)
	Group  string      `json:"name"`
	Status int         `json:"status"`
	Index  int         `json:"index,omitempty"`
	PID    int         `json:"pid,omitempty"`
	Config interface{} `json:"config,omitempty"`
}

// Sink receives frames addressed to one subscription. Implemented by
// internal/server's per-connection writer; kept as an interface here so
// eventbus has no dependency on the wire/net layers.
type Sink interface {
	// Send enqueues payload for delivery on cid. Implementations must not
	// block the caller (the reactor goroutine) for long — a slow or dead
	// client is the connection manager's problem (spec §4.2 backpressure),
	// not the event bus's.
	Send(cid uint16, payload []byte) error
}

// Subscription is one client's registered interest.
type Subscription struct {
	ID    xid.ID
	Ident int
	CID   uint16
	Sink  Sink
}

// Bus fans out events to subscriptions filtered by ident bit. Like the rest
// of the supervisor state, a Bus is meant to be driven from a single
// goroutine (spec §5); it holds no internal lock.
type Bus struct {
	subs map[xid.ID]*Subscription

	// Encode marshals an Event to the bytes placed in the event frame's
	// payload. Injected so eventbus doesn't hardcode a JSON library choice.
	Encode func(Event) ([]byte, error)
}

// New creates an empty event bus.
func New(encode func(Event) ([]byte, error)) *Bus {
	return &Bus{subs: make(map[xid.ID]*Subscription), Encode: encode}
}

// Subscribe registers sink as interested in events matching ident, and
// returns the new subscription (its CID doubles as the event-stream
// correlation id, per spec §4.7: "the cid of the SUBS frame is reused as
// the event stream correlation id").
func (b *Bus) Subscribe(ident int, cid uint16, sink Sink) *Subscription {
	sub := &Subscription{ID: xid.New(), Ident: ident, CID: cid, Sink: sink}
	b.subs[sub.ID] = sub
	return sub
}

// Unsubscribe drops a subscription, e.g. when its connection disconnects
// (spec §4.2: "Subscriptions on dying clients are dropped").
func (b *Bus) Unsubscribe(id xid.ID) {
	delete(b.subs, id)
}

// UnsubscribeSink removes every subscription owned by sink, used when a
// connection closes and the caller doesn't track subscription ids itself.
func (b *Bus) UnsubscribeSink(sink Sink) {
	for id, sub := range b.subs {
		if sub.Sink == sink {
			delete(b.subs, id)
		}
	}
}

// Publish delivers ev to every subscription whose ident bitmask intersects
// ev.Ident. Publication order within one subscriber matches call order;
// there is no ordering guarantee across subscribers (spec §4.7).
func (b *Bus) Publish(ev Event) {
	payload, err := b.Encode(ev)
	if err != nil {
		return
	}
	for _, sub := range b.subs {
		if sub.Ident&ev.Ident == 0 {
			continue
		}
		_ = sub.Sink.Send(sub.CID, payload)
	}
}

// Count returns the number of live subscriptions, used by internal/metrics.
func (b *Bus) Count() int {
	return len(b.subs)
}
