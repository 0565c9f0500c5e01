package eventbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
	"github.com/xvzf/amasp/pkg/eventbus"
)

func TestEventBusManySubscribers(t *testing.T) {
	eb := eventbus.New[proto.Packet]()

	// All packets
	sub0 := eb.Subscribe("inbound", 2, eventbus.MatchAll[proto.Packet])
	assert.Equal(t, 2, cap(sub0.C()))
	assert.Equal(t, 0, len(sub0.C()))
	defer sub0.Unsubscribe()

	// Only interrupts
	sub1 := eb.Subscribe("inbound", 2, amasp.MatchKind(proto.KindSIP))
	defer sub1.Unsubscribe()

	// Another topic
	sub2 := eb.Subscribe("outbound", 1, nil)
	defer sub2.Unsubscribe()

	sub3 := eb.Subscribe("outbound", 0, eventbus.MatchAll[proto.Packet])
	defer sub3.Unsubscribe()

	sip := proto.Packet{Kind: proto.KindSIP, DeviceID: 1, Code: 2}
	srp := proto.Packet{Kind: proto.KindSRP, DeviceID: 1, Payload: []uint8("x")}
	mrp := proto.Packet{Kind: proto.KindMRP, DeviceID: 7}

	eb.Publish("inbound", sip)
	eb.Publish("inbound", srp)
	eb.Publish("outbound", mrp)

	assert.Equal(t, 2, len(sub0.C()))
	assert.Equal(t, sip, <-sub0.C())
	assert.Equal(t, srp, <-sub0.C())

	assert.Equal(t, 1, len(sub1.C()))
	assert.Equal(t, sip, <-sub1.C())

	assert.Equal(t, 1, len(sub2.C()))
	assert.Equal(t, mrp, <-sub2.C())

	// sub3 has no buffer and nobody was receiving at publish time
	assert.Equal(t, 0, len(sub3.C()))
}

func TestEventBusFullQueueDrops(t *testing.T) {
	eb := eventbus.New[int]()
	sub := eb.Subscribe("topic", 1, eventbus.MatchAll[int])
	defer sub.Unsubscribe()

	eb.Publish("topic", 1)
	eb.Publish("topic", 2)

	assert.Equal(t, 1, <-sub.C())
	assert.Equal(t, 0, len(sub.C()))
}

func TestUnsubscribe(t *testing.T) {
	eb := eventbus.New[string]()

	sub := eb.Subscribe("topic", 2, eventbus.MatchAll[string])
	other := eb.Subscribe("topic", 2, eventbus.MatchAll[string])
	defer other.Unsubscribe()

	sub.Unsubscribe()
	sub.Unsubscribe()

	// Publishing after unsubscribing must neither panic nor deliver
	eb.Publish("topic", "This message should not be received")
	eb.Publish("topic", "Neither should this one")

	_, ok := <-sub.C()
	assert.False(t, ok, "Unsubscribed channel should be closed")
	assert.Equal(t, 2, len(other.C()))
}
