package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"campus-chat-service/internal/db"
	"campus-chat-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts room persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room models.Room) (models.Room, error)
	GetRoom(ctx context.Context, roomID primitive.ObjectID) (models.Room, error)
	ListRoomsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Room, error)
	TouchRoom(ctx context.Context, roomID primitive.ObjectID) error
}

// RoomRepo is a Mongo implementation of RoomRepository.
type RoomRepo struct {
	rooms *mongo.Collection
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(database *db.Database) *RoomRepo {
	return &RoomRepo{rooms: database.Collection(db.CollectionRooms)}
}

// CreateRoom inserts a room document with fresh timestamps.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.Room) (models.Room, error) {
	now := time.Now().UTC()
	room.ID = primitive.NewObjectID()
	room.CreatedAt = now
	room.UpdatedAt = now

	if _, err := r.rooms.InsertOne(ctx, room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID primitive.ObjectID) (models.Room, error) {
	var room models.Room
	err := r.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListRoomsByIDs fetches rooms by id in bounded $in batches.
func (r *RoomRepo) ListRoomsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Room, error) {
	var rooms []models.Room
	for _, chunk := range chunkIDs(ids) {
		cursor, err := r.rooms.Find(ctx, bson.M{"_id": bson.M{"$in": chunk}})
		if err != nil {
			return nil, err
		}
		var batch []models.Room
		if err := cursor.All(ctx, &batch); err != nil {
			return nil, err
		}
		rooms = append(rooms, batch...)
	}
	return rooms, nil
}

// TouchRoom bumps updatedAt; called after every stored message.
func (r *RoomRepo) TouchRoom(ctx context.Context, roomID primitive.ObjectID) error {
	res, err := r.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}
