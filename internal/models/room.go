package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoomKind classifies what a chat room is attached to.
type RoomKind string

const (
	RoomKindGroup      RoomKind = "group"
	RoomKindDirect     RoomKind = "direct"
	RoomKindCourse     RoomKind = "course"
	RoomKindDepartment RoomKind = "department"
)

// ValidRoomKind reports whether k is one of the supported room kinds.
func ValidRoomKind(k RoomKind) bool {
	switch k {
	case RoomKindGroup, RoomKindDirect, RoomKindCourse, RoomKindDepartment:
		return true
	}
	return false
}

// Room represents a chat room document.
type Room struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Kind        RoomKind           `bson:"kind" json:"kind"`
	IsPrivate   bool               `bson:"isPrivate" json:"is_private"`
	MaxMembers  int                `bson:"maxMembers" json:"max_members"`
	CreatedBy   primitive.ObjectID `bson:"createdBy" json:"created_by"`
	CreatedAt   time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updated_at"`
}

// RoomMemberView pairs a member's profile with their membership metadata.
type RoomMemberView struct {
	User     User       `json:"user"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

// RoomView is the enriched room returned by the rooms listing: the room
// itself plus its active members, creator profile and counters.
type RoomView struct {
	Room
	Members      []RoomMemberView `json:"members"`
	Creator      *User            `json:"creator,omitempty"`
	MessageCount int64            `json:"message_count"`
	UnreadCount  int64            `json:"unread_count"`
}
