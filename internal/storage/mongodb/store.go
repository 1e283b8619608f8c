// Package mongodb implements storage persisters using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-smp/internal/storage"
)

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store holds the MongoDB connection of one SMP instance
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// NewStore connects to MongoDB and prepares the registry collections
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	s := &Store{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: timeout,
	}

	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	// owner lookups for GetAllOfOwner after reload
	_, err := s.db.Collection(storage.CollectionServiceGroups).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "item.owner_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating service group indexes: %w", err)
	}

	for _, name := range []string{storage.CollectionServiceInformation, storage.CollectionRedirects} {
		_, err = s.db.Collection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "item.service_group_id.scheme", Value: 1}, {Key: "item.service_group_id.value", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("creating %s indexes: %w", name, err)
		}
	}
	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Persisters returns a persister per registry collection
func (s *Store) Persisters() storage.Persisters {
	return storage.Persisters{
		ServiceGroups:      NewCollection[*storage.ServiceGroup](s.db.Collection(storage.CollectionServiceGroups)),
		ServiceInformation: NewCollection[*storage.ServiceInformation](s.db.Collection(storage.CollectionServiceInformation)),
		Redirects:          NewCollection[*storage.Redirect](s.db.Collection(storage.CollectionRedirects)),
		BusinessCards:      NewCollection[*storage.BusinessCard](s.db.Collection(storage.CollectionBusinessCards)),
	}
}

// document is the stored envelope. The collection key is the _id so
// upserts are idempotent.
type document[T any] struct {
	ID        string    `bson:"_id"`
	Item      T         `bson:"item"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Collection persists one entity kind in a MongoDB collection
type Collection[T any] struct {
	coll *mongo.Collection
}

var _ storage.Persister[*storage.ServiceGroup] = (*Collection[*storage.ServiceGroup])(nil)

// NewCollection wraps a MongoDB collection
func NewCollection[T any](coll *mongo.Collection) *Collection[T] {
	return &Collection[T]{coll: coll}
}

// LoadAll implements storage.Persister
func (c *Collection[T]) LoadAll(ctx context.Context) ([]T, error) {
	cursor, err := c.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var docs []document[T]
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.coll.Name(), err)
	}

	items := make([]T, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.Item)
	}
	return items, nil
}

// Save implements storage.Persister
func (c *Collection[T]) Save(ctx context.Context, key string, item T) error {
	doc := document[T]{ID: key, Item: item, UpdatedAt: time.Now().UTC()}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", storage.ErrConflict, key)
	}
	return err
}

// Remove implements storage.Persister
func (c *Collection[T]) Remove(ctx context.Context, key string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": key})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}
