package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User is the profile document written by the campus platform. This
// service only reads it to enrich rooms and messages.
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	Email  string             `bson:"email" json:"email"`
	Role   string             `bson:"role" json:"role"`
	Avatar string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
}
