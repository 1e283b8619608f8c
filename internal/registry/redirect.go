package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// RedirectManager manages redirects to other SMPs
type RedirectManager struct {
	store  *storage.Registry
	locks  *participantLocks
	events *notifier
	logger *slog.Logger
}

// CreateOrUpdate stores the redirect for pid and docType, replacing an
// existing one. Service information at the same key is removed.
func (m *RedirectManager) CreateOrUpdate(ctx context.Context, pid identifier.Participant, docType identifier.DocumentType, targetHref, subjectUID, certificate, extension string) (*storage.Redirect, error) {
	if err := validateParticipant(pid); err != nil {
		return nil, err
	}
	if docType.Scheme == "" || docType.Value == "" {
		return nil, fmt.Errorf("%w: document type identifier is required", ErrValidation)
	}
	if strings.TrimSpace(targetHref) == "" {
		return nil, fmt.Errorf("%w: target href is required", ErrValidation)
	}
	if strings.TrimSpace(subjectUID) == "" {
		return nil, fmt.Errorf("%w: subject unique identifier is required", ErrValidation)
	}

	r := &storage.Redirect{
		ServiceGroupID:          pid,
		DocumentTypeID:          docType,
		TargetHref:              targetHref,
		SubjectUniqueIdentifier: subjectUID,
		Certificate:             certificate,
		Extension:               extension,
	}

	var emitted []EventType
	err := func() error {
		unlock := m.locks.lock(pid)
		defer unlock()

		var err error
		emitted, err = m.createOrUpdateLocked(ctx, r)
		return err
	}()
	for _, t := range emitted {
		m.events.emit(ctx, t, pid, docType)
	}
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func (m *RedirectManager) createOrUpdateLocked(ctx context.Context, r *storage.Redirect) ([]EventType, error) {
	sgKey := storage.ServiceGroupKey(r.ServiceGroupID)
	if !m.store.ServiceGroups.Contains(sgKey) {
		return nil, fmt.Errorf("%w: service group %s", storage.ErrNotFound, sgKey)
	}

	key := r.Key()
	logger := m.logger.With("participant", sgKey, "document_type", r.DocumentTypeID.URIEncoded())

	var events []EventType
	si, removed, err := m.store.ServiceInformation.Delete(ctx, key)
	if err != nil {
		return nil, err
	}
	if removed {
		logger.Info("service information replaced by redirect")
		events = append(events, EventServiceInformationDeleted)
	}

	event, err := m.writeLocked(ctx, r, logger)
	if err != nil {
		if removed {
			if rerr := m.store.ServiceInformation.Create(context.WithoutCancel(ctx), si); rerr != nil {
				logger.Error("failed to restore service information", "error", rerr)
				return events, err
			}
			logger.Warn("service information restored after failed redirect write")
		}
		return nil, err
	}
	return append(events, event), nil
}

func (m *RedirectManager) writeLocked(ctx context.Context, r *storage.Redirect, logger *slog.Logger) (EventType, error) {
	if m.store.Redirects.Contains(r.Key()) {
		if err := m.store.Redirects.Update(ctx, r); err != nil {
			return "", err
		}
		logger.Info("redirect updated", "target", r.TargetHref)
		return EventRedirectUpdated, nil
	}

	if err := m.store.Redirects.Create(ctx, r); err != nil {
		return "", err
	}
	logger.Info("redirect created", "target", r.TargetHref)
	return EventRedirectCreated, nil
}

// Delete removes the redirect at r's key
func (m *RedirectManager) Delete(ctx context.Context, r *storage.Redirect) (bool, error) {
	if r == nil {
		return false, fmt.Errorf("%w: redirect is required", ErrValidation)
	}

	removed, err := func() (bool, error) {
		unlock := m.locks.lock(r.ServiceGroupID)
		defer unlock()
		_, removed, err := m.store.Redirects.Delete(ctx, r.Key())
		return removed, err
	}()
	if removed {
		m.events.emit(ctx, EventRedirectDeleted, r.ServiceGroupID, r.DocumentTypeID)
	}
	return removed, err
}

// DeleteAllOfServiceGroup removes every redirect of pid
func (m *RedirectManager) DeleteAllOfServiceGroup(ctx context.Context, pid identifier.Participant) (int, error) {
	unlock := m.locks.lock(pid)
	defer unlock()
	return m.deleteAllOf(ctx, pid)
}

// deleteAllOf requires the participant lock
func (m *RedirectManager) deleteAllOf(ctx context.Context, pid identifier.Participant) (int, error) {
	count := 0
	for _, r := range m.allOf(pid) {
		_, removed, err := m.store.Redirects.Delete(ctx, r.Key())
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	return count, nil
}

// Get returns the redirect of pid and docType
func (m *RedirectManager) Get(pid identifier.Participant, docType identifier.DocumentType) (*storage.Redirect, bool) {
	return m.store.Redirects.Get(storage.DocumentKey(pid, docType))
}

// GetAllOfServiceGroup returns the redirects of pid ordered by key
func (m *RedirectManager) GetAllOfServiceGroup(pid identifier.Participant) []*storage.Redirect {
	return m.allOf(pid)
}

func (m *RedirectManager) allOf(pid identifier.Participant) []*storage.Redirect {
	return m.store.Redirects.GetAll(func(r *storage.Redirect) bool {
		return r.ServiceGroupID.Equal(pid)
	})
}

// GetAll returns all redirects ordered by key
func (m *RedirectManager) GetAll() []*storage.Redirect {
	return m.store.Redirects.GetAll(nil)
}

// Count returns the number of redirects
func (m *RedirectManager) Count() int {
	return m.store.Redirects.Count()
}
