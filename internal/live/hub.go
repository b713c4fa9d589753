// Package live pushes roster change events to WebSocket subscribers. Redis
// pub/sub bridges instances so a mutation applied anywhere reaches every
// connected client; subscribers re-run their own filter/sort on each event.
package live

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/classroll/backend/pkg/metrics"
)

// Heartbeat timing in seconds.
const (
	PingInterval = 30
	PongWait     = 60
)

// Event names delivered to subscribers.
const (
	EventAttendeeCreated = "attendee_created"
	EventAttendeeUpdated = "attendee_updated"
	EventAttendeeDeleted = "attendee_deleted"
	EventRosterBulk      = "roster_bulk"
	EventStats           = "stats"
)

// Publisher publishes a roster event for cross-instance broadcast.
type Publisher interface {
	PublishRosterEvent(event string, payload []byte) error
}

// Subscriber subscribes to the roster channel and invokes handler for each
// incoming event. The returned cancel stops the subscription.
type Subscriber interface {
	SubscribeRoster(handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains the set of connected clients for the single roster topic.
type Hub struct {
	clients   map[string]*Client
	mu        sync.RWMutex
	logger    *zap.Logger
	pub       Publisher
	cancelSub func()
}

// NewHub creates a hub. pub may be nil, in which case events are delivered to
// local clients only.
func NewHub(logger *zap.Logger, pub Publisher) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		pub:     pub,
	}
}

// StartBridge subscribes to the cross-instance channel. Incoming events are
// broadcast to local clients; the publishing instance receives its own events
// back, so Publish never broadcasts locally (single delivery per client).
func (h *Hub) StartBridge(sub Subscriber) error {
	cancel, err := sub.SubscribeRoster(func(event string, payload []byte) {
		h.Broadcast(event, json.RawMessage(payload))
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cancelSub = cancel
	h.mu.Unlock()
	return nil
}

// Stop cancels the bridge subscription.
func (h *Hub) Stop() {
	h.mu.Lock()
	cancel := h.cancelSub
	h.cancelSub = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.LiveClients.Inc()
	h.logger.Debug("live client joined", zap.String("client_id", c.ID))
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()
	if ok {
		metrics.LiveClients.Dec()
	}
	h.logger.Debug("live client left", zap.String("client_id", c.ID))
}

// Broadcast sends an event to every local client. Slow clients with a full
// buffer are skipped rather than blocking the roster.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Publish delivers an event to every subscriber on every instance, exactly
// once per client. Without a publisher it falls back to a local broadcast.
func (h *Hub) Publish(event string, payload interface{}) {
	if h.pub == nil {
		h.Broadcast(event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.pub.PublishRosterEvent(event, data); err != nil {
		h.logger.Warn("publish roster event failed, delivering locally", zap.String("event", event), zap.Error(err))
		h.Broadcast(event, json.RawMessage(data))
	}
}

// ClientCount returns the number of locally connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
