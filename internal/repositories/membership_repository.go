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

var ErrMembershipNotFound = errors.New("membership not found")

// MembershipRepository abstracts membership persistence. Business rules
// (capacity, reactivation, error ladder) live in the membership manager;
// this layer only moves documents.
type MembershipRepository interface {
	Find(ctx context.Context, roomID, userID primitive.ObjectID) (models.Membership, error)
	Insert(ctx context.Context, membership models.Membership) (models.Membership, error)
	Reactivate(ctx context.Context, membershipID primitive.ObjectID, at time.Time) error
	Deactivate(ctx context.Context, roomID, userID primitive.ObjectID) error
	CountActive(ctx context.Context, roomID primitive.ObjectID) (int64, error)
	IsActiveMember(ctx context.Context, roomID, userID primitive.ObjectID) (bool, error)
	ListActiveByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Membership, error)
	ListActiveByRooms(ctx context.Context, roomIDs []primitive.ObjectID) ([]models.Membership, error)
	ListActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Membership, error)
	UpdateLastRead(ctx context.Context, roomID, userID primitive.ObjectID, at time.Time) error
}

// MembershipRepo is a Mongo implementation of MembershipRepository.
type MembershipRepo struct {
	members *mongo.Collection
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(database *db.Database) *MembershipRepo {
	return &MembershipRepo{members: database.Collection(db.CollectionRoomMembers)}
}

// Find returns the membership document for (roomID, userID), active or not.
func (r *MembershipRepo) Find(ctx context.Context, roomID, userID primitive.ObjectID) (models.Membership, error) {
	var membership models.Membership
	err := r.members.FindOne(ctx, bson.M{"roomId": roomID, "userId": userID}).Decode(&membership)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Membership{}, ErrMembershipNotFound
	}
	return membership, err
}

// Insert stores a new membership document.
func (r *MembershipRepo) Insert(ctx context.Context, membership models.Membership) (models.Membership, error) {
	membership.ID = primitive.NewObjectID()
	if _, err := r.members.InsertOne(ctx, membership); err != nil {
		return models.Membership{}, err
	}
	return membership, nil
}

// Reactivate flips an inactive membership back on and refreshes joinedAt.
// LastReadAt is deliberately untouched so rejoin keeps the read cursor.
func (r *MembershipRepo) Reactivate(ctx context.Context, membershipID primitive.ObjectID, at time.Time) error {
	res, err := r.members.UpdateOne(ctx,
		bson.M{"_id": membershipID},
		bson.M{"$set": bson.M{"isActive": true, "joinedAt": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// Deactivate soft-leaves a room: the document stays, isActive goes false.
func (r *MembershipRepo) Deactivate(ctx context.Context, roomID, userID primitive.ObjectID) error {
	res, err := r.members.UpdateOne(ctx,
		bson.M{"roomId": roomID, "userId": userID, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// CountActive returns the number of active members in a room.
func (r *MembershipRepo) CountActive(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	return r.members.CountDocuments(ctx, bson.M{"roomId": roomID, "isActive": true})
}

// IsActiveMember reports whether the user currently belongs to the room.
func (r *MembershipRepo) IsActiveMember(ctx context.Context, roomID, userID primitive.ObjectID) (bool, error) {
	count, err := r.members.CountDocuments(ctx, bson.M{"roomId": roomID, "userId": userID, "isActive": true})
	return count > 0, err
}

// ListActiveByRoom returns every active membership of a room.
func (r *MembershipRepo) ListActiveByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Membership, error) {
	cursor, err := r.members.Find(ctx, bson.M{"roomId": roomID, "isActive": true})
	if err != nil {
		return nil, err
	}
	var memberships []models.Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// ListActiveByRooms returns active memberships across rooms, chunking the
// roomId $in filter.
func (r *MembershipRepo) ListActiveByRooms(ctx context.Context, roomIDs []primitive.ObjectID) ([]models.Membership, error) {
	var memberships []models.Membership
	for _, chunk := range chunkIDs(roomIDs) {
		cursor, err := r.members.Find(ctx, bson.M{"roomId": bson.M{"$in": chunk}, "isActive": true})
		if err != nil {
			return nil, err
		}
		var batch []models.Membership
		if err := cursor.All(ctx, &batch); err != nil {
			return nil, err
		}
		memberships = append(memberships, batch...)
	}
	return memberships, nil
}

// ListActiveByUser returns the user's active memberships.
func (r *MembershipRepo) ListActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Membership, error) {
	cursor, err := r.members.Find(ctx, bson.M{"userId": userID, "isActive": true})
	if err != nil {
		return nil, err
	}
	var memberships []models.Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}

// UpdateLastRead advances the user's read cursor for a room.
func (r *MembershipRepo) UpdateLastRead(ctx context.Context, roomID, userID primitive.ObjectID, at time.Time) error {
	_, err := r.members.UpdateOne(ctx,
		bson.M{"roomId": roomID, "userId": userID, "isActive": true},
		bson.M{"$set": bson.M{"lastReadAt": at}},
	)
	return err
}
