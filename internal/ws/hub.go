package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campus-chat-service/internal/models"
	"campus-chat-service/internal/observability"
)

// Broadcaster is the fan-out dependency injected into the chat facade.
// Message durability never depends on it: a send has already been stored
// by the time broadcast runs, and broadcast failures stay here.
type Broadcaster interface {
	BroadcastNewMessage(roomID string, msg models.MessageView)
}

// connection wraps a websocket with a write mutex so broadcasts and
// control-frame replies never interleave frames on the same socket.
type connection struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	info ConnInfo
}

func (c *connection) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub maintains the process-local registry of connections and the room
// channels each one has joined. It holds no persisted state; a client
// that is offline at broadcast time reconciles through the message log.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*connection]bool
	connRooms map[*connection]map[string]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:     make(map[string]map[*connection]bool),
		connRooms: make(map[*connection]map[string]bool),
	}
}

// Subscribe adds the connection to a room channel. Joining a channel the
// connection is already in is a no-op; the first join reports true.
func (h *Hub) Subscribe(roomID string, c *connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*connection]bool)
	}
	if h.rooms[roomID][c] {
		return false
	}
	h.rooms[roomID][c] = true
	if _, ok := h.connRooms[c]; !ok {
		h.connRooms[c] = make(map[string]bool)
	}
	h.connRooms[c][roomID] = true
	return true
}

// Unsubscribe removes the connection from one room channel.
func (h *Hub) Unsubscribe(roomID string, c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomID, c)
}

// Disconnect removes the connection from every room channel it joined.
func (h *Hub) Disconnect(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.connRooms[c] {
		h.removeLocked(roomID, c)
	}
	delete(h.connRooms, c)
}

func (h *Hub) removeLocked(roomID string, c *connection) {
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if rooms, ok := h.connRooms[c]; ok {
		delete(rooms, roomID)
	}
}

// SubscriberCount reports how many connections joined a room channel.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastNewMessage delivers a stored message to every connection
// subscribed to the room. Delivery is best-effort and at-most-once per
// connection; a write error closes and removes only that connection.
func (h *Hub) BroadcastNewMessage(roomID string, msg models.MessageView) {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	event := models.ChatEvent{Type: "new_message", RoomID: roomID, Message: &msg}
	payload, _ := json.Marshal(event)
	for _, c := range conns {
		if err := c.write(payload); err != nil {
			log.Printf("websocket write error: %v", err)
			observability.IncBroadcastRecipient("error")
			c.ws.Close()
			h.Disconnect(c)
			h.publishWSError(roomID, c, err)
			continue
		}
		observability.IncBroadcastRecipient("ok")
	}
}

func (h *Hub) publishWSError(roomID string, c *connection, err error) {
	info := c.info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"room_id":     roomID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
