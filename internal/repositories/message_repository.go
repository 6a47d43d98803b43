package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campus-chat-service/internal/db"
	"campus-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions with the per-room message log.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID primitive.ObjectID) (models.Message, error)
	ListMessages(ctx context.Context, roomID primitive.ObjectID, page, limit int) ([]models.Message, int64, error)
	CountByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error)
	CountUnread(ctx context.Context, roomID, userID primitive.ObjectID, lastReadAt *time.Time) (int64, error)
}

// MessageRepo is a Mongo-backed repository.
type MessageRepo struct {
	messages *mongo.Collection
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(database *db.Database) *MessageRepo {
	return &MessageRepo{messages: database.Collection(db.CollectionMessages)}
}

// CreateMessage appends a message to the room's log.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	now := time.Now().UTC()
	msg.ID = primitive.NewObjectID()
	msg.IsDeleted = false
	msg.CreatedAt = now
	msg.UpdatedAt = now

	if _, err := r.messages.InsertOne(ctx, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage retrieves a single message by id.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID primitive.ObjectID) (models.Message, error) {
	var msg models.Message
	err := r.messages.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns one page of non-deleted messages plus the total
// count. The query walks newest-first so page 1 is the latest messages;
// the slice is reversed before returning so callers always see ascending
// createdAt, with the id as tiebreak for equal timestamps.
func (r *MessageRepo) ListMessages(ctx context.Context, roomID primitive.ObjectID, page, limit int) ([]models.Message, int64, error) {
	filter := bson.M{"roomId": roomID, "isDeleted": false}

	total, err := r.messages.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.messages.Find(ctx, filter, newestFirstPage(page, limit))
	if err != nil {
		return nil, 0, err
	}
	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, 0, err
	}

	reverseMessages(msgs)
	return msgs, total, nil
}

// newestFirstPage builds the find options for one page of the
// newest-first walk: createdAt descending with _id as the tiebreak for
// equal timestamps.
func newestFirstPage(page, limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page-1) * int64(limit)).
		SetLimit(int64(limit))
}

// reverseMessages flips a newest-first page in place so callers see
// ascending createdAt, id ascending on ties.
func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// CountByRoom counts the room's non-deleted messages.
func (r *MessageRepo) CountByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	return r.messages.CountDocuments(ctx, bson.M{"roomId": roomID, "isDeleted": false})
}

// CountUnread counts non-deleted messages from other senders created
// after lastReadAt. A nil cursor means the user has never read the room,
// so every foreign message counts.
func (r *MessageRepo) CountUnread(ctx context.Context, roomID, userID primitive.ObjectID, lastReadAt *time.Time) (int64, error) {
	filter := bson.M{
		"roomId":    roomID,
		"isDeleted": false,
		"senderId":  bson.M{"$ne": userID},
	}
	if lastReadAt != nil {
		filter["createdAt"] = bson.M{"$gt": *lastReadAt}
	}
	return r.messages.CountDocuments(ctx, filter)
}
