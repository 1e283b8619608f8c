package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// MemoryCollection keeps a collection in memory and writes every mutation
// through to an optional Persister.
type MemoryCollection[T Entity[T]] struct {
	name      string
	persister Persister[T]
	logger    *slog.Logger

	mu    sync.RWMutex
	items map[string]T

	// Batching state, guarded by mu. While suspended > 0 writes only record
	// the key in dirty (true = save, false = remove).
	suspended int
	dirty     map[string]bool
}

var _ Collection[*ServiceGroup] = (*MemoryCollection[*ServiceGroup])(nil)

// NewMemoryCollection creates an empty collection. persister may be nil.
func NewMemoryCollection[T Entity[T]](name string, persister Persister[T], logger *slog.Logger) *MemoryCollection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryCollection[T]{
		name:      name,
		persister: persister,
		logger:    logger.With("collection", name),
		items:     make(map[string]T),
		dirty:     make(map[string]bool),
	}
}

// Name implements Collection
func (c *MemoryCollection[T]) Name() string { return c.name }

// Load replaces the in-memory state with the persisted state
func (c *MemoryCollection[T]) Load(ctx context.Context) error {
	if c.persister == nil {
		return nil
	}
	items, err := c.persister.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading %s: %w", c.name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T, len(items))
	for _, item := range items {
		c.items[item.Key()] = item
	}
	c.logger.Debug("collection loaded", "count", len(items))
	return nil
}

// Get implements Collection
func (c *MemoryCollection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	return item.Clone(), true
}

// Contains implements Collection
func (c *MemoryCollection[T]) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[key]
	return ok
}

// GetAll implements Collection. The result is ordered by key.
func (c *MemoryCollection[T]) GetAll(filter func(T) bool) []T {
	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for k, item := range c.items {
		if filter == nil || filter(item) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	result := make([]T, 0, len(keys))
	for _, k := range keys {
		result = append(result, c.items[k].Clone())
	}
	c.mu.RUnlock()
	return result
}

// Count implements Collection
func (c *MemoryCollection[T]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Create implements Collection
func (c *MemoryCollection[T]) Create(ctx context.Context, item T) error {
	key := item.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		return fmt.Errorf("%w: %s %s already exists", ErrConflict, c.name, key)
	}
	c.items[key] = item.Clone()

	if err := c.save(ctx, key); err != nil {
		delete(c.items, key)
		return err
	}
	return nil
}

// Update implements Collection
func (c *MemoryCollection[T]) Update(ctx context.Context, item T) error {
	key := item.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	old, exists := c.items[key]
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrNotFound, c.name, key)
	}
	c.items[key] = item.Clone()

	if err := c.save(ctx, key); err != nil {
		c.items[key] = old
		return err
	}
	return nil
}

// Delete implements Collection
func (c *MemoryCollection[T]) Delete(ctx context.Context, key string) (T, bool, error) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	old, exists := c.items[key]
	if !exists {
		return zero, false, nil
	}
	delete(c.items, key)

	if err := c.remove(ctx, key); err != nil {
		c.items[key] = old
		return zero, false, err
	}
	return old, true, nil
}

// PerformWithoutAutoSave implements Collection. Writes made by other
// goroutines while fn runs are deferred and flushed together with the
// batch; they report success immediately and a flush failure is returned
// to the batch owner only. Keys that fail to flush stay dirty and are
// retried by the next flush unless a later direct write persists them.
func (c *MemoryCollection[T]) PerformWithoutAutoSave(ctx context.Context, fn func() error) error {
	c.mu.Lock()
	c.suspended++
	c.mu.Unlock()

	fnErr := fn()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended--
	if c.suspended > 0 {
		return fnErr
	}
	return errors.Join(fnErr, c.flush(ctx))
}

// save persists the current value under key. Caller holds mu.
func (c *MemoryCollection[T]) save(ctx context.Context, key string) error {
	if c.persister == nil {
		return nil
	}
	if c.suspended > 0 {
		c.dirty[key] = true
		return nil
	}
	if err := c.persister.Save(ctx, key, c.items[key]); err != nil {
		c.logger.Error("failed to persist", "key", key, "error", err)
		return fmt.Errorf("%w: saving %s %s: %w", ErrPersistence, c.name, key, err)
	}
	delete(c.dirty, key)
	return nil
}

// remove deletes the persisted value under key. Caller holds mu.
func (c *MemoryCollection[T]) remove(ctx context.Context, key string) error {
	if c.persister == nil {
		return nil
	}
	if c.suspended > 0 {
		c.dirty[key] = false
		return nil
	}
	if err := c.persister.Remove(ctx, key); err != nil {
		c.logger.Error("failed to remove persisted item", "key", key, "error", err)
		return fmt.Errorf("%w: removing %s %s: %w", ErrPersistence, c.name, key, err)
	}
	delete(c.dirty, key)
	return nil
}

// flush writes the dirty set. Failed keys stay dirty for the next flush.
// Caller holds mu.
func (c *MemoryCollection[T]) flush(ctx context.Context) error {
	if len(c.dirty) == 0 {
		return nil
	}
	var errs []error
	for key, present := range c.dirty {
		var err error
		if item, ok := c.items[key]; ok && present {
			err = c.persister.Save(ctx, key, item)
		} else {
			err = c.persister.Remove(ctx, key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: flushing %s %s: %w", ErrPersistence, c.name, key, err))
			continue
		}
		delete(c.dirty, key)
	}
	if len(errs) > 0 {
		c.logger.Error("batch flush incomplete", "failed", len(errs))
	}
	return errors.Join(errs...)
}
