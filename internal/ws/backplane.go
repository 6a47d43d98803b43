package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"campus-chat-service/internal/models"
)

// Backplane fans messages out across nodes over a Redis channel. Each
// node publishes its stored messages and replays everything it receives
// into the local hub, so a subscriber lands on any node and still sees
// the full room stream.
type Backplane struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
}

// NewBackplane wraps a hub with Redis pub/sub delivery.
func NewBackplane(hub *Hub, rdb *redis.Client, channel string) *Backplane {
	if channel == "" {
		channel = "chat_events"
	}
	return &Backplane{hub: hub, rdb: rdb, channel: channel}
}

// Run subscribes to the backplane channel and delivers received events
// to the local hub until ctx is cancelled. Call it from a goroutine.
func (b *Backplane) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.ChatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("backplane event unmarshal error: %v", err)
				continue
			}
			if event.Type != "new_message" || event.Message == nil {
				continue
			}
			b.hub.BroadcastNewMessage(event.RoomID, *event.Message)
		}
	}
}

// BroadcastNewMessage publishes the event to Redis; every node,
// including this one, delivers it through its own hub. On a publish
// error the message still reaches local subscribers directly.
func (b *Backplane) BroadcastNewMessage(roomID string, msg models.MessageView) {
	event := models.ChatEvent{Type: "new_message", RoomID: roomID, Message: &msg}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("backplane event marshal error: %v", err)
		return
	}
	if err := b.rdb.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		log.Printf("backplane publish error: %v", err)
		b.hub.BroadcastNewMessage(roomID, msg)
	}
}
