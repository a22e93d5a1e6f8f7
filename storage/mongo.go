package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoConfig contains MongoDB-specific configuration.
type MongoConfig struct {
	// URI is the MongoDB connection string.
	URI string `json:"uri" yaml:"uri"`

	// Database is the database name.
	Database string `json:"database" yaml:"database"`

	// Collection is the collection holding state items.
	Collection string `json:"collection" yaml:"collection"`

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// mongoItem is the document shape for one stored item. The item body is
// kept as a JSON string so arbitrary key characters survive Mongo's
// field-name restrictions.
type mongoItem struct {
	Key  string `bson:"_id"`
	Data string `bson:"data"`
}

// MongoStorage is a MongoDB-backed implementation of Storage.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoStorage connects to MongoDB and returns a store.
func NewMongoStorage(cfg MongoConfig, logger *zap.Logger) (*MongoStorage, error) {
	if cfg.URI == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, ErrInvalidInput
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStorage{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With(zap.String("component", "mongo_storage")),
	}, nil
}

// Read loads the requested items.
func (s *MongoStorage) Read(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	if len(keys) == 0 {
		return map[string]map[string]any{}, nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cursor.Close(ctx)

	result := make(map[string]map[string]any, len(keys))
	for cursor.Next(ctx) {
		var doc mongoItem
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		var item map[string]any
		if err := json.Unmarshal([]byte(doc.Data), &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", doc.Key, err)
		}
		result[doc.Key] = item
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor: %w", err)
	}
	return result, nil
}

// Write upserts the given items.
func (s *MongoStorage) Write(ctx context.Context, changes map[string]map[string]any) error {
	if len(changes) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(changes))
	for key, item := range changes {
		if key == "" {
			return ErrInvalidInput
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", key, err)
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": key}).
			SetReplacement(mongoItem{Key: key, Data: string(data)}).
			SetUpsert(true))
	}

	if _, err := s.collection.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("mongo write: %w", err)
	}
	return nil
}

// Delete removes the given items.
func (s *MongoStorage) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
