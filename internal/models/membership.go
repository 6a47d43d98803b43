package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberRole is the role a user holds inside a room.
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// Membership links a user to a room. There is at most one membership
// document per (roomId, userId) pair; leaving flips IsActive instead of
// deleting, so rejoin reactivates the same document and LastReadAt
// survives across leave/rejoin.
type Membership struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoomID     primitive.ObjectID `bson:"roomId" json:"room_id"`
	UserID     primitive.ObjectID `bson:"userId" json:"user_id"`
	Role       MemberRole         `bson:"role" json:"role"`
	IsActive   bool               `bson:"isActive" json:"is_active"`
	JoinedAt   time.Time          `bson:"joinedAt" json:"joined_at"`
	LastReadAt *time.Time         `bson:"lastReadAt,omitempty" json:"last_read_at,omitempty"`
}
