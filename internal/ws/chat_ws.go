package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"

	"campus-chat-service/internal/middleware"
	"campus-chat-service/internal/observability"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. A silent
	// client past this deadline counts as an idle timeout and disconnects.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum control-frame size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MembershipChecker gates room subscriptions on active membership.
type MembershipChecker interface {
	RequireActiveMember(ctx context.Context, roomID, userID primitive.ObjectID) error
}

// controlFrame is what clients send after connecting to manage their
// room subscriptions.
type controlFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// WebSocketHandler owns the event-stream endpoint: it authenticates the
// handshake, then serves join_room/leave_room control frames until the
// connection closes.
type WebSocketHandler struct {
	hub       *Hub
	members   MembershipChecker
	jwtSecret string
}

// NewWebSocketHandler constructs a WebSocketHandler.
func NewWebSocketHandler(hub *Hub, members MembershipChecker, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, members: members, jwtSecret: jwtSecret}
}

// Handle upgrades the connection and runs its read loop.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("campus-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	identity, err := middleware.IdentityFromHeader(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	client := &connection{
		ws: conn,
		info: ConnInfo{
			ConnID:      newConnID(),
			UserID:      identity.UserID.Hex(),
			DeviceID:    observability.DeviceIDFromRequest(c.Request),
			IP:          observability.IPFromRequest(c.Request),
			RequestID:   requestID,
			TraceID:     traceID,
			ConnectedAt: time.Now(),
		},
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycleEvent(ctx, client, "ws_connect", "")

	done := make(chan struct{})
	go h.pingLoop(client, done)
	h.readLoop(ctx, client, identity.UserID, done)
}

func (h *WebSocketHandler) pingLoop(client *connection, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := client.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WebSocketHandler) readLoop(ctx context.Context, client *connection, userID primitive.ObjectID, done chan struct{}) {
	var closeReason string
	defer func() {
		close(done)
		h.hub.Disconnect(client)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycleEvent(ctx, client, "ws_disconnect", closeReason)
		client.ws.Close()
	}()

	client.ws.SetReadLimit(maxMessageSize)
	client.ws.SetReadDeadline(time.Now().Add(pongWait))
	client.ws.SetPongHandler(func(string) error {
		client.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := client.ws.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycleEvent(ctx, client, "ws_error", closeReason)
			}
			return
		}

		var frame controlFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			log.Printf("websocket control frame unmarshal error: %v", err)
			continue
		}
		h.handleFrame(ctx, client, userID, frame)
	}
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, client *connection, userID primitive.ObjectID, frame controlFrame) {
	roomID, err := primitive.ObjectIDFromHex(frame.RoomID)
	if err != nil {
		h.sendError(client, frame.RoomID, "invalid room id")
		return
	}
	// Hub channels are keyed by the canonical lowercase hex form, the
	// same key broadcasts use. The raw frame value may differ in case.
	roomKey := roomID.Hex()

	switch frame.Type {
	case "join_room":
		if err := h.members.RequireActiveMember(ctx, roomID, userID); err != nil {
			h.sendError(client, frame.RoomID, "not a member of this room")
			return
		}
		if h.hub.Subscribe(roomKey, client) {
			observability.IncWSEvent("ws_subscribe")
		}
	case "leave_room":
		h.hub.Unsubscribe(roomKey, client)
	default:
		h.sendError(client, frame.RoomID, "unknown frame type")
	}
}

func (h *WebSocketHandler) sendError(client *connection, roomID, reason string) {
	payload, _ := json.Marshal(map[string]string{
		"type":    "error",
		"room_id": roomID,
		"error":   reason,
	})
	if err := client.write(payload); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

func (h *WebSocketHandler) publishLifecycleEvent(ctx context.Context, client *connection, event, reason string) {
	info := client.info
	_ = observability.PublishEvent(ctx, "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
