package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"campus-chat-service/internal/db"
	"campus-chat-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads user profiles written by the campus platform.
type UserRepository interface {
	GetUser(ctx context.Context, userID primitive.ObjectID) (models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// UserRepo is a Mongo implementation of UserRepository.
type UserRepo struct {
	users *mongo.Collection
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(database *db.Database) *UserRepo {
	return &UserRepo{users: database.Collection(db.CollectionUsers)}
}

// GetUser fetches one profile.
func (r *UserRepo) GetUser(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUsersByIDs fetches profiles in bounded $in batches. Missing ids are
// simply absent from the result; enrichment tolerates gaps.
func (r *UserRepo) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var users []models.User
	for _, chunk := range chunkIDs(ids) {
		cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": chunk}})
		if err != nil {
			return nil, err
		}
		var batch []models.User
		if err := cursor.All(ctx, &batch); err != nil {
			return nil, err
		}
		users = append(users, batch...)
	}
	return users, nil
}
