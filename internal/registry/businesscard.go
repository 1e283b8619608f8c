package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-smp/internal/directory"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// BusinessCardManager manages business cards and keeps the participant
// directory in sync. Directory failures are logged and never fail the
// local mutation.
type BusinessCardManager struct {
	store   *storage.Registry
	locks   *participantLocks
	indexer directory.Indexer
	enabled bool
	events  *notifier
	logger  *slog.Logger
}

// DirectoryEnabled reports whether directory integration is on
func (m *BusinessCardManager) DirectoryEnabled() bool { return m.enabled }

func validateEntities(entities []*storage.BusinessCardEntity) error {
	for i, e := range entities {
		if e == nil {
			return fmt.Errorf("%w: business card entity %d is nil", ErrValidation, i)
		}
		if len(e.Names) == 0 || strings.TrimSpace(e.Names[0].Name) == "" {
			return fmt.Errorf("%w: business card entity %d has no name", ErrValidation, i)
		}
		if strings.TrimSpace(e.CountryCode) == "" {
			return fmt.Errorf("%w: business card entity %d has no country code", ErrValidation, i)
		}
	}
	return nil
}

// CreateOrUpdate replaces the business card of pid. Entities without an ID
// get a new one. The service group must exist.
func (m *BusinessCardManager) CreateOrUpdate(ctx context.Context, pid identifier.Participant, entities []*storage.BusinessCardEntity, syncToDirectory bool) (*storage.BusinessCard, error) {
	if err := validateParticipant(pid); err != nil {
		return nil, err
	}
	if err := validateEntities(entities); err != nil {
		return nil, err
	}

	bc := &storage.BusinessCard{ServiceGroupID: pid}
	for _, e := range entities {
		c := e.Clone()
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		bc.Entities = append(bc.Entities, c)
	}

	var event EventType
	err := func() error {
		unlock := m.locks.lock(pid)
		defer unlock()

		sgKey := storage.ServiceGroupKey(pid)
		if !m.store.ServiceGroups.Contains(sgKey) {
			return fmt.Errorf("%w: service group %s", storage.ErrNotFound, sgKey)
		}
		if m.store.BusinessCards.Contains(bc.Key()) {
			if err := m.store.BusinessCards.Update(ctx, bc); err != nil {
				return err
			}
			event = EventBusinessCardUpdated
		} else {
			if err := m.store.BusinessCards.Create(ctx, bc); err != nil {
				return err
			}
			event = EventBusinessCardCreated
		}
		m.logger.Info("business card stored", "participant", sgKey, "entities", len(bc.Entities))
		return nil
	}()
	if err != nil {
		return nil, err
	}

	if syncToDirectory {
		m.publish(ctx, pid)
	}
	m.events.emit(ctx, event, pid, identifier.DocumentType{})
	return bc.Clone(), nil
}

// Delete removes the business card of pid
func (m *BusinessCardManager) Delete(ctx context.Context, pid identifier.Participant, syncToDirectory bool) (bool, error) {
	if err := validateParticipant(pid); err != nil {
		return false, err
	}

	removed, err := func() (bool, error) {
		unlock := m.locks.lock(pid)
		defer unlock()
		_, removed, err := m.store.BusinessCards.Delete(ctx, storage.ServiceGroupKey(pid))
		return removed, err
	}()
	if err != nil || !removed {
		return false, err
	}

	if syncToDirectory {
		m.unpublish(ctx, pid)
	}
	m.events.emit(ctx, EventBusinessCardDeleted, pid, identifier.DocumentType{})
	return true, nil
}

// Get returns the business card of pid
func (m *BusinessCardManager) Get(pid identifier.Participant) (*storage.BusinessCard, bool) {
	return m.store.BusinessCards.Get(storage.ServiceGroupKey(pid))
}

// GetAll returns all business cards ordered by participant
func (m *BusinessCardManager) GetAll() []*storage.BusinessCard {
	return m.store.BusinessCards.GetAll(nil)
}

// Count returns the number of business cards
func (m *BusinessCardManager) Count() int {
	return m.store.BusinessCards.Count()
}

type keepCardsKey struct{}

// KeepBusinessCards marks ctx so that service group deletions made under it
// leave the business card and the directory untouched. The caller becomes
// responsible for the card.
func KeepBusinessCards(ctx context.Context) context.Context {
	return context.WithValue(ctx, keepCardsKey{}, true)
}

func keepBusinessCards(ctx context.Context) bool {
	keep, _ := ctx.Value(keepCardsKey{}).(bool)
	return keep
}

// Notify removes the card of a deleted service group when directory
// integration is enabled
func (m *BusinessCardManager) Notify(ctx context.Context, e Event) error {
	if e.Type != EventServiceGroupDeleted || !m.enabled || keepBusinessCards(ctx) {
		return nil
	}
	_, err := m.Delete(ctx, e.Participant, true)
	return err
}

func (m *BusinessCardManager) publish(ctx context.Context, pid identifier.Participant) {
	if !m.enabled {
		return
	}
	if err := m.indexer.Publish(ctx, pid); err != nil {
		m.logger.Warn("failed to publish business card", "participant", pid.URIEncoded(), "error", err)
	}
}

func (m *BusinessCardManager) unpublish(ctx context.Context, pid identifier.Participant) {
	if !m.enabled {
		return
	}
	if err := m.indexer.Unpublish(ctx, pid); err != nil {
		m.logger.Warn("failed to unpublish business card", "participant", pid.URIEncoded(), "error", err)
	}
}
