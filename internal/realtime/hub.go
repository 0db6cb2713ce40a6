package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"whatsrelay/internal/constants"
	"whatsrelay/internal/metrics"
	"whatsrelay/internal/models"
	"whatsrelay/internal/privacy"
)

// ErrHubClosed is returned by Register after Close.
var ErrHubClosed = errors.New("realtime hub is closed")

// Close reasons reported to the connection writer.
const (
	ReasonUnregistered = "unregistered"
	ReasonSlowConsumer = "slow consumer"
	ReasonShutdown     = "server shutting down"
)

// Client is one realtime subscriber. Frames are queued on a bounded channel
// and drained by a single writer, so a client sees frames in publish order.
type Client struct {
	id          string
	send        chan []byte
	closeReason string

	// guarded by Hub.mu
	rooms  map[string]struct{}
	closed bool
}

func NewClient(queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = constants.DefaultSendQueueSize
	}
	return &Client{
		id:    uuid.NewString(),
		send:  make(chan []byte, queueSize),
		rooms: make(map[string]struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Frames returns the client's queue. It is closed when the client leaves the
// hub; CloseReason is valid after that.
func (c *Client) Frames() <-chan []byte { return c.send }

func (c *Client) CloseReason() string { return c.closeReason }

// Stats is a point-in-time view of the hub.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Hub tracks connected clients and their conversation rooms. Publishing never
// blocks: a client whose queue is full is dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool
	logger  *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	stats := h.statsLocked()
	h.mu.Unlock()

	metrics.SetRealtimeGauges(stats.Connections, stats.Rooms)
	h.logger.WithField("connection_id", c.id).Debug("Realtime client registered")
	return nil
}

// Join subscribes c to a conversation room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, conversationID string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[conversationID] = room
	}
	room[c] = struct{}{}
	c.rooms[conversationID] = struct{}{}
	stats := h.statsLocked()
	h.mu.Unlock()

	metrics.SetRealtimeGauges(stats.Connections, stats.Rooms)
	h.logger.WithFields(logrus.Fields{
		"connection_id":   c.id,
		"conversation_id": privacy.MaskConversationID(conversationID),
	}).Debug("Realtime client joined conversation")
}

// Leave removes c from a room. Leaving a room c is not in is a no-op.
func (h *Hub) Leave(c *Client, conversationID string) {
	h.mu.Lock()
	h.leaveLocked(c, conversationID)
	stats := h.statsLocked()
	h.mu.Unlock()

	metrics.SetRealtimeGauges(stats.Connections, stats.Rooms)
}

// Unregister removes c from every room and closes its queue. Safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c, ReasonUnregistered)
	stats := h.statsLocked()
	h.mu.Unlock()

	if removed {
		metrics.SetRealtimeGauges(stats.Connections, stats.Rooms)
		h.logger.WithField("connection_id", c.id).Debug("Realtime client unregistered")
	}
}

// PublishToConversation queues event for every member of the room.
func (h *Hub) PublishToConversation(conversationID string, event models.RealtimeEvent) {
	frame, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	slow := h.deliverLocked(h.rooms[conversationID], frame)
	h.mu.RUnlock()

	metrics.RecordFramePublished(event.Event)
	h.dropSlow(slow)
}

// PublishGlobal queues event for every connected client.
func (h *Hub) PublishGlobal(event models.RealtimeEvent) {
	frame, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	slow := h.deliverLocked(h.clients, frame)
	h.mu.RUnlock()

	metrics.RecordFramePublished(event.Event)
	h.dropSlow(slow)
}

// SendTo queues event for a single client.
func (h *Hub) SendTo(c *Client, event models.RealtimeEvent) {
	frame, ok := h.encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	var slow []*Client
	if _, registered := h.clients[c]; registered {
		slow = h.deliverLocked(map[*Client]struct{}{c: {}}, frame)
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

// Close disconnects every client and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c, ReasonShutdown)
	}
	h.mu.Unlock()

	metrics.SetRealtimeGauges(0, 0)
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statsLocked()
}

// Members returns the number of clients in a room.
func (h *Hub) Members(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) encode(event models.RealtimeEvent) ([]byte, bool) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).WithField("event", event.Event).Error("Failed to encode realtime event")
		return nil, false
	}
	return frame, true
}

// deliverLocked must be called with at least the read lock held. Queues are
// only closed under the write lock, so sends here cannot hit a closed channel.
func (h *Hub) deliverLocked(targets map[*Client]struct{}, frame []byte) []*Client {
	var slow []*Client
	for c := range targets {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	return slow
}

func (h *Hub) dropSlow(slow []*Client) {
	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	dropped := 0
	for _, c := range slow {
		if h.removeLocked(c, ReasonSlowConsumer) {
			dropped++
		}
	}
	stats := h.statsLocked()
	h.mu.Unlock()

	for i := 0; i < dropped; i++ {
		metrics.RecordSlowConsumer()
	}
	metrics.SetRealtimeGauges(stats.Connections, stats.Rooms)
	h.logger.WithField("count", dropped).Warn("Dropped slow realtime clients")
}

func (h *Hub) leaveLocked(c *Client, conversationID string) {
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(room, c)
	delete(c.rooms, conversationID)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
}

func (h *Hub) removeLocked(c *Client, reason string) bool {
	if c.closed {
		return false
	}
	for conversationID := range c.rooms {
		h.leaveLocked(c, conversationID)
	}
	delete(h.clients, c)
	c.closed = true
	c.closeReason = reason
	close(c.send)
	return true
}

func (h *Hub) statsLocked() Stats {
	return Stats{Connections: len(h.clients), Rooms: len(h.rooms)}
}
