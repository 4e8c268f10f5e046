package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortshare/internal/content"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoItem struct {
	ShortID   string     `bson:"_id"`
	Kind      string     `bson:"kind"`
	Content   string     `bson:"content"`
	Language  string     `bson:"language,omitempty"`
	FilePath  string     `bson:"file_path,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	Views     int64      `bson:"views"`
}

func (d mongoItem) item() *content.Item {
	item := &content.Item{
		ShortID:   content.ShortID(d.ShortID),
		Kind:      content.Kind(d.Kind),
		Content:   d.Content,
		Language:  d.Language,
		FilePath:  d.FilePath,
		CreatedAt: d.CreatedAt.UTC(),
		Views:     d.Views,
	}

	if d.ExpiresAt != nil {
		item.ExpiresAt = d.ExpiresAt.UTC()
	}

	return item
}

// MongoStore is a MongoDB implementation of content.Repository.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoStore creates a content store over collection.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection, now: time.Now}
}

// Migrate creates the TTL index on expires_at and the created_at index used
// by ListRecent. The TTL monitor only sweeps periodically, so every read
// still filters on expires_at.
func (m *MongoStore) Migrate(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("store.MongoStore.Migrate: %w", err)
	}

	return nil
}

// Insert upserts against a filter that only matches an expired document, so
// a live document with the same _id surfaces as a duplicate key error.
func (m *MongoStore) Insert(ctx context.Context, item *content.Item) error {
	const op = "store.MongoStore.Insert"

	fields := bson.M{
		"kind":       string(item.Kind),
		"content":    item.Content,
		"language":   item.Language,
		"file_path":  item.FilePath,
		"created_at": item.CreatedAt,
		"views":      int64(0),
	}

	update := bson.M{"$set": fields}
	if item.ExpiresAt.IsZero() {
		update["$unset"] = bson.M{"expires_at": ""}
	} else {
		fields["expires_at"] = item.ExpiresAt
	}

	filter := bson.M{
		"_id":        string(item.ShortID),
		"expires_at": bson.M{"$lte": m.now()},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return content.ErrDuplicateKey
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *MongoStore) FetchAndIncrement(ctx context.Context, id content.ShortID) (*content.Item, error) {
	const op = "store.MongoStore.FetchAndIncrement"

	filter := m.liveFilter()
	filter["_id"] = string(id)

	var doc mongoItem

	err := m.collection.FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, content.ErrNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.item(), nil
}

func (m *MongoStore) ListRecent(ctx context.Context, limit int) ([]*content.Item, error) {
	const op = "store.MongoStore.ListRecent"

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := m.collection.Find(ctx, m.liveFilter(), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var docs []mongoItem
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]*content.Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.item())
	}

	return items, nil
}

func (m *MongoStore) Exists(ctx context.Context, id content.ShortID) (bool, error) {
	filter := m.liveFilter()
	filter["_id"] = string(id)

	n, err := m.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("store.MongoStore.Exists: %w", err)
	}

	return n > 0, nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

func (m *MongoStore) liveFilter() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"expires_at": bson.M{"$exists": false}},
		bson.M{"expires_at": bson.M{"$gt": m.now()}},
	}}
}
