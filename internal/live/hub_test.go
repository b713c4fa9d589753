package live

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBridge struct {
	published []WSMessage
	handler   func(event string, payload []byte)
	loopback  bool
}

func (f *fakeBridge) PublishRosterEvent(event string, payload []byte) error {
	f.published = append(f.published, WSMessage{Event: event, Data: payload})
	if f.loopback && f.handler != nil {
		f.handler(event, payload)
	}
	return nil
}

func (f *fakeBridge) SubscribeRoster(handler func(event string, payload []byte)) (func(), error) {
	f.handler = handler
	return func() { f.handler = nil }, nil
}

func newTestClient(id string, hub *Hub) *Client {
	return &Client{ID: id, hub: hub, send: make(chan WSMessage, 8), logger: zap.NewNop()}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	a := newTestClient("a", hub)
	b := newTestClient("b", hub)
	hub.Register(a)
	hub.Register(b)
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Broadcast(EventStats, map[string]int{"total": 3})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			assert.Equal(t, EventStats, msg.Event)
			var data map[string]int
			require.NoError(t, json.Unmarshal(msg.Data, &data))
			assert.Equal(t, 3, data["total"])
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
}

func TestBroadcastSkipsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	slow := &Client{ID: "slow", hub: hub, send: make(chan WSMessage), logger: zap.NewNop()}
	hub.Register(slow)
	defer hub.Unregister(slow)

	// Unbuffered channel with no reader must not block the broadcast.
	hub.Broadcast(EventAttendeeUpdated, map[string]string{"id": "x"})
}

func TestPublishGoesThroughBridgeOnce(t *testing.T) {
	bridge := &fakeBridge{loopback: true}
	hub := NewHub(zap.NewNop(), bridge)
	require.NoError(t, hub.StartBridge(bridge))
	defer hub.Stop()

	c := newTestClient("c", hub)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Publish(EventAttendeeCreated, map[string]string{"full_name": "John Doe"})

	require.Len(t, bridge.published, 1)
	assert.Equal(t, EventAttendeeCreated, bridge.published[0].Event)

	// Delivered exactly once, via the loopback, not a second local broadcast.
	select {
	case msg := <-c.send:
		assert.Equal(t, EventAttendeeCreated, msg.Event)
	default:
		t.Fatal("client received nothing")
	}
	select {
	case msg := <-c.send:
		t.Fatalf("client received duplicate event %q", msg.Event)
	default:
	}
}

func TestPublishFallsBackToLocalWithoutBridge(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := newTestClient("c", hub)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Publish(EventRosterBulk, map[string]int{"count": 5})

	select {
	case msg := <-c.send:
		assert.Equal(t, EventRosterBulk, msg.Event)
	default:
		t.Fatal("client received nothing")
	}
}

func TestClientCount(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	assert.Equal(t, 0, hub.ClientCount())
	c := newTestClient("c", hub)
	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount())
	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount())
}
