package preferences

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollectionName is the collection used when none is specified.
const DefaultCollectionName = "notification_preferences"

// MongoStorage is a MongoDB implementation of the Storage interface.
// One document per user, keyed by user_id.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates a Mongo-backed preference storage.
func NewMongoStorage(db *mongo.Database, collection string) *MongoStorage {
	if collection == "" {
		collection = DefaultCollectionName
	}
	return &MongoStorage{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique index on user_id.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStorage) Get(ctx context.Context, userID string) (*Preference, error) {
	var pref Preference
	err := s.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&pref)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPreferenceNotFound
		}
		return nil, err
	}
	return &pref, nil
}

func (s *MongoStorage) Upsert(ctx context.Context, pref Preference) error {
	if pref.UserID == "" {
		return errors.New("preferences: user ID is required")
	}

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"channels":   pref.Channels,
			"types":      pref.Types,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    pref.UserID,
			"created_at": now,
		},
	}

	_, err := s.coll.UpdateOne(ctx, bson.M{"user_id": pref.UserID}, update,
		options.UpdateOne().SetUpsert(true))
	return err
}
