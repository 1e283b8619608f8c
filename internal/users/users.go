// Package users resolves service group owners
package users

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// User owns service groups
type User struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Resolver looks up owners by ID
type Resolver interface {
	Resolve(ctx context.Context, id string) (User, bool)
}

// StaticDirectory is an in-memory user list, usually built from configuration
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

var _ Resolver = (*StaticDirectory)(nil)

// NewStaticDirectory creates a directory holding users. Entries with an
// empty ID are skipped.
func NewStaticDirectory(users ...User) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.Add(u)
	}
	return d
}

// Add inserts or replaces u
func (d *StaticDirectory) Add(u User) {
	id := strings.TrimSpace(u.ID)
	if id == "" {
		return
	}
	u.ID = id
	d.mu.Lock()
	d.users[id] = u
	d.mu.Unlock()
}

// Resolve implements Resolver
func (d *StaticDirectory) Resolve(_ context.Context, id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[strings.TrimSpace(id)]
	return u, ok
}

// IDs returns all user IDs in sorted order
func (d *StaticDirectory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
