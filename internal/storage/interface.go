// Package storage provides the registry data model and the keyed collection
// abstraction the SMP registry is built on.
//
// # Interface Design
//
// Every entity kind lives in its own [Collection]:
//
//   - service groups, keyed by participant identifier
//   - service information, keyed by participant + document type
//   - redirects, keyed by participant + document type
//   - business cards, keyed by participant identifier
//
// The [Registry] type groups the collections of one SMP instance.
//
// # Implementations
//
// [MemoryCollection] keeps the working set in memory and writes every
// mutation through to a [Persister]. The mongodb sub-package provides a
// MongoDB persister. A nil persister gives a purely in-memory collection.
//
// # Concurrency
//
// Each collection is guarded by a single sync.RWMutex. Readers share it,
// a writer holds it exclusively for the map mutation and the persistence
// call. Callers must never hold two collection locks at once; the
// collections themselves never call into each other.
package storage

import (
	"context"
)

// Entity is implemented by every stored model. Key returns the unique
// collection key, Clone returns a deep copy.
type Entity[T any] interface {
	Key() string
	Clone() T
}

// Collection is a keyed set of entities of one kind
type Collection[T Entity[T]] interface {
	// Name returns the collection name used for logging and persistence
	Name() string

	// Get returns a copy of the entity stored under key
	Get(key string) (T, bool)

	// Contains reports whether key exists
	Contains(key string) bool

	// GetAll returns copies of all entities matching filter (nil = all)
	GetAll(filter func(T) bool) []T

	// Count returns the number of stored entities
	Count() int

	// Create inserts a new entity. Returns ErrConflict if the key exists.
	Create(ctx context.Context, item T) error

	// Update replaces an existing entity. Returns ErrNotFound if absent.
	Update(ctx context.Context, item T) error

	// Delete removes the entity under key and returns the removed value.
	// Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) (T, bool, error)

	// PerformWithoutAutoSave runs fn with per-write persistence suspended
	// and flushes all changes made meanwhile once fn returns.
	PerformWithoutAutoSave(ctx context.Context, fn func() error) error
}

// Persister is the durability backend of a MemoryCollection
type Persister[T any] interface {
	// LoadAll returns every persisted entity
	LoadAll(ctx context.Context) ([]T, error)

	// Save upserts an entity under key
	Save(ctx context.Context, key string, item T) error

	// Remove deletes the entity under key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
