package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ServiceGroupManager owns the service group lifecycle, including SML
// registration and the cascade to service information and redirects
type ServiceGroupManager struct {
	store     *storage.Registry
	hook      sml.Hook
	locks     *participantLocks
	infos     *ServiceInformationManager
	redirects *RedirectManager
	events    *notifier
	logger    *slog.Logger
	now       func() time.Time
}

func validateParticipant(pid identifier.Participant) error {
	if pid.Scheme == "" || pid.Value == "" {
		return fmt.Errorf("%w: participant identifier is required", ErrValidation)
	}
	return nil
}

// Create registers pid in the SML (if registerInSML) and stores a new
// service group. If the local insert fails the SML registration is undone.
func (m *ServiceGroupManager) Create(ctx context.Context, ownerID string, pid identifier.Participant, extension string, registerInSML bool) (*storage.ServiceGroup, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if err := validateParticipant(pid); err != nil {
		return nil, err
	}

	sg, err := m.create(ctx, ownerID, pid, extension, registerInSML)
	if err != nil {
		return nil, err
	}
	m.events.emit(ctx, EventServiceGroupCreated, pid, identifier.DocumentType{})
	return sg, nil
}

func (m *ServiceGroupManager) create(ctx context.Context, ownerID string, pid identifier.Participant, extension string, registerInSML bool) (*storage.ServiceGroup, error) {
	unlock := m.locks.lock(pid)
	defer unlock()

	key := storage.ServiceGroupKey(pid)
	logger := m.logger.With("participant", key)

	if m.store.ServiceGroups.Contains(key) {
		return nil, fmt.Errorf("%w: service group %s already exists", storage.ErrConflict, key)
	}

	if registerInSML {
		if err := m.hook.Create(ctx, pid); err != nil {
			logger.Warn("SML registration failed", "error", err)
			return nil, fmt.Errorf("%w: creating %s: %w", ErrDirectoryRegistration, key, err)
		}
	}

	now := m.now()
	sg := &storage.ServiceGroup{
		ParticipantID: pid,
		OwnerID:       ownerID,
		Extension:     extension,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.store.ServiceGroups.Create(ctx, sg); err != nil {
		logger.Error("failed to store service group", "error", err)
		if registerInSML {
			m.hook.UndoCreate(context.WithoutCancel(ctx), pid)
		}
		return nil, err
	}

	logger.Info("service group created", "owner", ownerID, "sml", registerInSML)
	return sg.Clone(), nil
}

// Update changes owner and extension of an existing group. It reports
// whether anything changed.
func (m *ServiceGroupManager) Update(ctx context.Context, pid identifier.Participant, ownerID, extension string) (bool, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return false, fmt.Errorf("%w: owner is required", ErrValidation)
	}
	if err := validateParticipant(pid); err != nil {
		return false, err
	}

	changed, err := func() (bool, error) {
		unlock := m.locks.lock(pid)
		defer unlock()

		key := storage.ServiceGroupKey(pid)
		sg, ok := m.store.ServiceGroups.Get(key)
		if !ok {
			return false, fmt.Errorf("%w: service group %s", storage.ErrNotFound, key)
		}
		if sg.OwnerID == ownerID && sg.Extension == extension {
			return false, nil
		}
		sg.OwnerID = ownerID
		sg.Extension = extension
		sg.UpdatedAt = m.now()
		if err := m.store.ServiceGroups.Update(ctx, sg); err != nil {
			return false, err
		}
		m.logger.Info("service group updated", "participant", key, "owner", ownerID)
		return true, nil
	}()
	if changed {
		m.events.emit(ctx, EventServiceGroupUpdated, pid, identifier.DocumentType{})
	}
	return changed, err
}

// Delete removes the service group with its service information and
// redirects, deregistering it from the SML first if requested. On failure
// everything removed is restored and the SML deregistration undone.
func (m *ServiceGroupManager) Delete(ctx context.Context, pid identifier.Participant, deregisterFromSML bool) (bool, error) {
	if err := validateParticipant(pid); err != nil {
		return false, err
	}
	if err := m.delete(ctx, pid, deregisterFromSML); err != nil {
		return false, err
	}
	m.events.emit(ctx, EventServiceGroupDeleted, pid, identifier.DocumentType{})
	return true, nil
}

func (m *ServiceGroupManager) delete(ctx context.Context, pid identifier.Participant, deregisterFromSML bool) error {
	unlock := m.locks.lock(pid)
	defer unlock()

	key := storage.ServiceGroupKey(pid)
	logger := m.logger.With("participant", key)

	sg, ok := m.store.ServiceGroups.Get(key)
	if !ok {
		return fmt.Errorf("%w: service group %s", storage.ErrNotFound, key)
	}

	if deregisterFromSML {
		if err := m.hook.Delete(ctx, pid); err != nil {
			logger.Warn("SML deregistration failed", "error", err)
			return fmt.Errorf("%w: deleting %s: %w", ErrDirectoryRegistration, key, err)
		}
	}

	redirects := m.redirects.allOf(pid)
	infos := m.infos.allOf(pid)

	if err := m.cascade(ctx, key, pid); err != nil {
		logger.Error("service group deletion failed, restoring", "error", err)
		m.restore(context.WithoutCancel(ctx), sg, redirects, infos)
		if deregisterFromSML {
			m.hook.UndoDelete(context.WithoutCancel(ctx), pid)
		}
		return err
	}

	logger.Info("service group deleted",
		"redirects", len(redirects),
		"service_information", len(infos),
		"sml", deregisterFromSML)
	return nil
}

func (m *ServiceGroupManager) cascade(ctx context.Context, key string, pid identifier.Participant) error {
	if _, _, err := m.store.ServiceGroups.Delete(ctx, key); err != nil {
		return err
	}
	if _, err := m.redirects.deleteAllOf(ctx, pid); err != nil {
		return err
	}
	if _, err := m.infos.deleteAllOf(ctx, pid); err != nil {
		return err
	}
	return nil
}

// restore re-inserts whatever the failed cascade removed
func (m *ServiceGroupManager) restore(ctx context.Context, sg *storage.ServiceGroup, redirects []*storage.Redirect, infos []*storage.ServiceInformation) {
	logger := m.logger.With("participant", sg.Key())

	if !m.store.ServiceGroups.Contains(sg.Key()) {
		if err := m.store.ServiceGroups.Create(ctx, sg); err != nil {
			logger.Error("failed to restore service group", "error", err)
		}
	}
	for _, r := range redirects {
		if m.store.Redirects.Contains(r.Key()) {
			continue
		}
		if err := m.store.Redirects.Create(ctx, r); err != nil {
			logger.Error("failed to restore redirect", "document_type", r.DocumentTypeID.URIEncoded(), "error", err)
		}
	}
	for _, si := range infos {
		if m.store.ServiceInformation.Contains(si.Key()) {
			continue
		}
		if err := m.store.ServiceInformation.Create(ctx, si); err != nil {
			logger.Error("failed to restore service information", "document_type", si.DocumentTypeID.URIEncoded(), "error", err)
		}
	}
}

// Get returns the service group of pid
func (m *ServiceGroupManager) Get(pid identifier.Participant) (*storage.ServiceGroup, bool) {
	return m.store.ServiceGroups.Get(storage.ServiceGroupKey(pid))
}

// Contains reports whether pid has a service group
func (m *ServiceGroupManager) Contains(pid identifier.Participant) bool {
	return m.store.ServiceGroups.Contains(storage.ServiceGroupKey(pid))
}

// GetAll returns all service groups ordered by participant
func (m *ServiceGroupManager) GetAll() []*storage.ServiceGroup {
	return m.store.ServiceGroups.GetAll(nil)
}

// GetAllOfOwner returns the groups owned by ownerID
func (m *ServiceGroupManager) GetAllOfOwner(ownerID string) []*storage.ServiceGroup {
	return m.store.ServiceGroups.GetAll(func(sg *storage.ServiceGroup) bool {
		return sg.OwnerID == ownerID
	})
}

// Count returns the number of service groups
func (m *ServiceGroupManager) Count() int {
	return m.store.ServiceGroups.Count()
}
