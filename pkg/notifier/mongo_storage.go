package notifier

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// DefaultCollectionName is the collection used when none is specified.
const DefaultCollectionName = "notifications"

// MongoStorage is a MongoDB implementation of the Storage interface.
//
// The grouping invariant is enforced by the server: UpsertGrouped is a
// single findOneAndUpdate with upsert keyed by the grouping tuple and the
// window filter, so concurrent events for the same key race on one document
// instead of inserting duplicates.
type MongoStorage struct {
	coll *mongo.Collection
}

// NewMongoStorage creates a Mongo-backed notification storage.
func NewMongoStorage(db *mongo.Database, collection string) *MongoStorage {
	if collection == "" {
		collection = DefaultCollectionName
	}
	return &MongoStorage{coll: db.Collection(collection)}
}

// EnsureIndexes creates the indexes the storage queries rely on: the
// grouping-key lookup and the recipient feed.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "type", Value: 1},
				{Key: "resource_type", Value: 1},
				{Key: "resource_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "updated_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "is_read", Value: 1},
			},
		},
	})
	return err
}

func (s *MongoStorage) UpsertGrouped(ctx context.Context, candidate Notification, window time.Duration) (*Notification, bool, error) {
	if candidate.ID == "" {
		return nil, false, errors.New("notifier: notification ID is required")
	}
	if candidate.Recipient == "" {
		return nil, false, errors.New("notifier: recipient is required")
	}

	now := time.Now()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}

	filter := bson.M{
		"recipient":     candidate.Recipient,
		"type":          candidate.Type,
		"resource_type": candidate.ResourceType,
		"resource_id":   candidate.ResourceID,
		"created_at":    bson.M{"$gte": now.Add(-window)},
	}

	setOnInsert := bson.M{
		"_id":             candidate.ID,
		"recipient":       candidate.Recipient,
		"type":            candidate.Type,
		"resource_type":   candidate.ResourceType,
		"resource_id":     candidate.ResourceID,
		"message":         candidate.Message,
		"delivery_status": candidate.DeliveryStatus,
		"created_at":      candidate.CreatedAt,
	}
	if candidate.Sender != "" {
		setOnInsert["sender"] = candidate.Sender
	}
	// data.count travels through $inc so it lands as 1 on insert and
	// increments on a window match; the remaining data fields are
	// insert-only (a grouping update keeps the original payload).
	for k, v := range candidate.Data {
		if k == DataCountKey {
			continue
		}
		setOnInsert["data."+k] = v
	}

	update := bson.M{
		"$inc": bson.M{"data." + DataCountKey: 1},
		"$set": bson.M{
			"is_read":    false,
			"updated_at": now,
		},
		"$setOnInsert": setOnInsert,
	}

	var result Notification
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	).Decode(&result)
	if err != nil {
		return nil, false, err
	}

	created := result.Count() == 1
	return &result, created, nil
}

func (s *MongoStorage) Get(ctx context.Context, recipient, id string) (*Notification, error) {
	var n Notification
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "recipient": recipient}).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *MongoStorage) List(ctx context.Context, recipient string, opts ListOptions) ([]Notification, error) {
	filter := bson.M{"recipient": recipient}
	if opts.OnlyUnread {
		filter["is_read"] = false
	}
	if len(opts.Types) > 0 {
		filter["type"] = bson.M{"$in": opts.Types}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	notifications := []Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *MongoStorage) CountUnread(ctx context.Context, recipient string) (int, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{
		"recipient": recipient,
		"is_read":   false,
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *MongoStorage) MarkRead(ctx context.Context, recipient string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "recipient": recipient},
		bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now()}},
	)
	return err
}

func (s *MongoStorage) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	result, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient": recipient, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return 0, err
	}
	return int(result.ModifiedCount), nil
}

func (s *MongoStorage) SetMessage(ctx context.Context, recipient, id, message string) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": bson.M{"message": message}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *MongoStorage) SetChannelStatus(ctx context.Context, recipient, id string, channel preferences.Channel, delivered bool, at time.Time) error {
	var field string
	switch channel {
	case preferences.ChannelInApp:
		field = "delivery_status.in_app"
	case preferences.ChannelEmail:
		field = "delivery_status.email"
	case preferences.ChannelPush:
		field = "delivery_status.push"
	default:
		return errors.New("notifier: unknown delivery channel " + string(channel))
	}

	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": bson.M{
			field + ".delivered": delivered,
			field + ".timestamp": at,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
