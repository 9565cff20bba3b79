package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	sent []struct {
		cid     uint16
		payload []byte
	}
}

func (f *fakeSink) Send(cid uint16, payload []byte) error {
	f.sent = append(f.sent, struct {
		cid     uint16
		payload []byte
	}{cid, payload})
	return nil
}

func newTestBus() *Bus {
	return New(func(e Event) ([]byte, error) { return json.Marshal(e) })
}

func TestPublishDeliversToMatchingIdent(t *testing.T) {
	bus := newTestBus()
	sink := &fakeSink{}
	bus.Subscribe(IdentStatus, 10, sink)

	bus.Publish(Event{Ident: IdentStatus, Group: "t", Status: EventRunning})

	require.Len(t, sink.sent, 1)
	assert.Equal(t, uint16(10), sink.sent[0].cid)
	var got Event
	require.NoError(t, json.Unmarshal(sink.sent[0].payload, &got))
	assert.Equal(t, "t", got.Group)
	assert.Equal(t, EventRunning, got.Status)
}

func TestPublishSkipsNonMatchingIdent(t *testing.T) {
	bus := newTestBus()
	sink := &fakeSink{}
	bus.Subscribe(IdentDelta, 10, sink)

	bus.Publish(Event{Ident: IdentStatus, Group: "t", Status: EventRunning})

	assert.Empty(t, sink.sent)
}

func TestPublishHonorsCombinedIdentBits(t *testing.T) {
	bus := newTestBus()
	sink := &fakeSink{}
	bus.Subscribe(IdentStatus|IdentConfigDiff, 10, sink)

	bus.Publish(Event{Ident: IdentConfigDiff, Group: "t"})

	assert.Len(t, sink.sent, 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := newTestBus()
	sink := &fakeSink{}
	sub := bus.Subscribe(IdentStatus, 10, sink)

	bus.Unsubscribe(sub.ID)
	bus.Publish(Event{Ident: IdentStatus, Group: "t"})

	assert.Empty(t, sink.sent)
	assert.Equal(t, 0, bus.Count())
}

func TestUnsubscribeSinkRemovesAllSubscriptionsForThatSink(t *testing.T) {
	bus := newTestBus()
	sink := &fakeSink{}
	bus.Subscribe(IdentStatus, 10, sink)
	bus.Subscribe(IdentDelta, 11, sink)
	other := &fakeSink{}
	bus.Subscribe(IdentStatus, 12, other)

	bus.UnsubscribeSink(sink)

	assert.Equal(t, 1, bus.Count())
	bus.Publish(Event{Ident: IdentStatus, Group: "t"})
	assert.Empty(t, sink.sent)
	assert.Len(t, other.sent, 1)
}

func TestMultipleSubscribersEachReceiveIndependently(t *testing.T) {
	bus := newTestBus()
	a, b := &fakeSink{}, &fakeSink{}
	bus.Subscribe(IdentDelta, 1, a)
	bus.Subscribe(IdentDelta, 2, b)

	bus.Publish(Event{Ident: IdentDelta, Group: "t"})

	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
}
