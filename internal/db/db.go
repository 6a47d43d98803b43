package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollectionRooms       = "rooms"
	CollectionRoomMembers = "room_members"
	CollectionMessages    = "messages"
	CollectionUsers       = "users"
)

// Database wraps the Mongo handle for one named database.
type Database struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials Mongo, verifies the connection and ensures the indexes
// the chat collections rely on.
func Connect(uri, name string) (*Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	database := &Database{client: client, db: client.Database(name)}
	if err := database.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	log.Printf("connected to mongodb database=%s", name)
	return database, nil
}

// Collection returns a handle to a named collection.
func (d *Database) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// Close disconnects the underlying client.
func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// ensureIndexes creates the indexes the repositories depend on. The
// unique (roomId, userId) index is the storage-level backstop against
// duplicate memberships racing past the manager's per-room lock.
func (d *Database) ensureIndexes(ctx context.Context) error {
	_, err := d.db.Collection(CollectionRoomMembers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}, {Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = d.db.Collection(CollectionMessages).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = d.db.Collection(CollectionRoomMembers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isActive", Value: 1}},
	})
	return err
}
