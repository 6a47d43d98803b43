package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType classifies a message payload.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// ValidMessageType reports whether t is one of the supported types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Message is an immutable chat message. Only IsDeleted and UpdatedAt may
// change after creation; deletion is a soft flag, never a removal.
type Message struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RoomID      primitive.ObjectID  `bson:"roomId" json:"room_id"`
	SenderID    primitive.ObjectID  `bson:"senderId" json:"sender_id"`
	Content     string              `bson:"content" json:"content"`
	MessageType MessageType         `bson:"messageType" json:"message_type"`
	FileURL     string              `bson:"fileUrl,omitempty" json:"file_url,omitempty"`
	FileName    string              `bson:"fileName,omitempty" json:"file_name,omitempty"`
	FileSize    int64               `bson:"fileSize,omitempty" json:"file_size,omitempty"`
	ReplyToID   *primitive.ObjectID `bson:"replyToId,omitempty" json:"reply_to_id,omitempty"`
	IsDeleted   bool                `bson:"isDeleted" json:"is_deleted"`
	CreatedAt   time.Time           `bson:"createdAt" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updated_at"`
}

// MessageView is a message enriched with its sender profile and, when the
// message is a reply, the replied-to message.
type MessageView struct {
	Message
	Sender  *User      `json:"sender,omitempty"`
	ReplyTo *ReplyView `json:"reply_to,omitempty"`
}

// ReplyView is the shallow rendering of a replied-to message.
type ReplyView struct {
	Message
	Sender *User `json:"sender,omitempty"`
}

// Pagination describes an offset-style page over a message log.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// ChatEvent is the envelope pushed over websocket connections.
type ChatEvent struct {
	Type    string       `json:"type"`
	RoomID  string       `json:"room_id"`
	Message *MessageView `json:"message,omitempty"`
}
