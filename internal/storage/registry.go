package storage

import (
	"context"
	"log/slog"
)

// Collection names, also used as persistence collection names
const (
	CollectionServiceGroups      = "service_groups"
	CollectionServiceInformation = "service_information"
	CollectionRedirects          = "redirects"
	CollectionBusinessCards      = "business_cards"
)

// Persisters bundles the backends of a Registry. Nil fields give purely
// in-memory collections.
type Persisters struct {
	ServiceGroups      Persister[*ServiceGroup]
	ServiceInformation Persister[*ServiceInformation]
	Redirects          Persister[*Redirect]
	BusinessCards      Persister[*BusinessCard]
}

// Registry groups the collections of one SMP instance
type Registry struct {
	ServiceGroups      *MemoryCollection[*ServiceGroup]
	ServiceInformation *MemoryCollection[*ServiceInformation]
	Redirects          *MemoryCollection[*Redirect]
	BusinessCards      *MemoryCollection[*BusinessCard]
}

// NewRegistry creates the collections backed by p
func NewRegistry(p Persisters, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ServiceGroups:      NewMemoryCollection(CollectionServiceGroups, p.ServiceGroups, logger),
		ServiceInformation: NewMemoryCollection(CollectionServiceInformation, p.ServiceInformation, logger),
		Redirects:          NewMemoryCollection(CollectionRedirects, p.Redirects, logger),
		BusinessCards:      NewMemoryCollection(CollectionBusinessCards, p.BusinessCards, logger),
	}
}

// NewMemoryRegistry creates a registry without persistence
func NewMemoryRegistry(logger *slog.Logger) *Registry {
	return NewRegistry(Persisters{}, logger)
}

// Load reads every collection from its persister
func (r *Registry) Load(ctx context.Context) error {
	if err := r.ServiceGroups.Load(ctx); err != nil {
		return err
	}
	if err := r.ServiceInformation.Load(ctx); err != nil {
		return err
	}
	if err := r.Redirects.Load(ctx); err != nil {
		return err
	}
	return r.BusinessCards.Load(ctx)
}
