package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// MergeMode selects how Merge treats an existing record at the same key
type MergeMode int

const (
	// MergeReplace discards the existing record; processes missing from the
	// new record disappear
	MergeReplace MergeMode = iota

	// MergeUpdate updates the existing record in place: processes of the new
	// record overwrite those with the same ID, others are kept
	MergeUpdate
)

func (m MergeMode) String() string {
	switch m {
	case MergeReplace:
		return "replace"
	case MergeUpdate:
		return "update"
	default:
		return fmt.Sprintf("MergeMode(%d)", int(m))
	}
}

// ServiceInformationManager manages the document type registrations of
// service groups
type ServiceInformationManager struct {
	store  *storage.Registry
	locks  *participantLocks
	events *notifier
	logger *slog.Logger
}

func validateServiceInformation(si *storage.ServiceInformation) error {
	if si == nil {
		return fmt.Errorf("%w: service information is required", ErrValidation)
	}
	if err := validateParticipant(si.ServiceGroupID); err != nil {
		return err
	}
	if si.DocumentTypeID.Scheme == "" || si.DocumentTypeID.Value == "" {
		return fmt.Errorf("%w: document type identifier is required", ErrValidation)
	}

	processes := make(map[string]struct{}, len(si.Processes))
	for _, p := range si.Processes {
		if p == nil {
			return fmt.Errorf("%w: nil process", ErrValidation)
		}
		pk := p.ProcessID.URIEncoded()
		if _, dup := processes[pk]; dup {
			return fmt.Errorf("%w: duplicate process %s", storage.ErrConflict, pk)
		}
		processes[pk] = struct{}{}

		profiles := make(map[string]struct{}, len(p.Endpoints))
		for _, e := range p.Endpoints {
			if e == nil || e.TransportProfile == "" {
				return fmt.Errorf("%w: endpoint of process %s has no transport profile", ErrValidation, pk)
			}
			if _, dup := profiles[e.TransportProfile]; dup {
				return fmt.Errorf("%w: duplicate endpoint %s in process %s", storage.ErrConflict, e.TransportProfile, pk)
			}
			profiles[e.TransportProfile] = struct{}{}
		}
	}
	return nil
}

// Merge creates or overwrites the service information at si's key. The
// owning service group must exist. A redirect at the same key is removed.
func (m *ServiceInformationManager) Merge(ctx context.Context, si *storage.ServiceInformation, mode MergeMode) error {
	if err := validateServiceInformation(si); err != nil {
		return err
	}

	var emitted []EventType
	err := func() error {
		unlock := m.locks.lock(si.ServiceGroupID)
		defer unlock()

		var err error
		emitted, err = m.mergeLocked(ctx, si, mode)
		return err
	}()
	for _, t := range emitted {
		m.events.emit(ctx, t, si.ServiceGroupID, si.DocumentTypeID)
	}
	return err
}

// mergeLocked requires the participant lock. It returns the events of the
// committed changes, even on a later failure.
func (m *ServiceInformationManager) mergeLocked(ctx context.Context, si *storage.ServiceInformation, mode MergeMode) ([]EventType, error) {
	sgKey := storage.ServiceGroupKey(si.ServiceGroupID)
	if !m.store.ServiceGroups.Contains(sgKey) {
		return nil, fmt.Errorf("%w: service group %s", storage.ErrNotFound, sgKey)
	}

	key := si.Key()
	logger := m.logger.With("participant", sgKey, "document_type", si.DocumentTypeID.URIEncoded())

	var events []EventType
	redirect, removed, err := m.store.Redirects.Delete(ctx, key)
	if err != nil {
		return nil, err
	}
	if removed {
		logger.Info("redirect replaced by service information")
		events = append(events, EventRedirectDeleted)
	}

	event, err := m.writeLocked(ctx, si, mode, logger)
	if err != nil {
		if removed {
			if rerr := m.store.Redirects.Create(context.WithoutCancel(ctx), redirect); rerr != nil {
				logger.Error("failed to restore redirect", "error", rerr)
				return events, err
			}
			logger.Warn("redirect restored after failed merge")
		}
		return nil, err
	}
	return append(events, event), nil
}

// writeLocked stores si according to mode. Caller holds the participant lock.
func (m *ServiceInformationManager) writeLocked(ctx context.Context, si *storage.ServiceInformation, mode MergeMode, logger *slog.Logger) (EventType, error) {
	key := si.Key()
	existing, exists := m.store.ServiceInformation.Get(key)
	switch {
	case !exists:
		if err := m.store.ServiceInformation.Create(ctx, si); err != nil {
			return "", err
		}
		logger.Info("service information created", "processes", len(si.Processes))
		return EventServiceInformationCreated, nil

	case mode == MergeUpdate:
		for _, p := range si.Processes {
			existing.SetProcess(p.Clone())
		}
		existing.Extension = si.Extension
		if err := m.store.ServiceInformation.Update(ctx, existing); err != nil {
			return "", err
		}

	default:
		if _, _, err := m.store.ServiceInformation.Delete(ctx, key); err != nil {
			return "", err
		}
		if err := m.store.ServiceInformation.Create(ctx, si); err != nil {
			if rerr := m.store.ServiceInformation.Create(context.WithoutCancel(ctx), existing); rerr != nil {
				logger.Error("failed to restore service information", "error", rerr)
			}
			return "", err
		}
	}

	logger.Info("service information updated", "mode", mode.String())
	return EventServiceInformationUpdated, nil
}

// Delete removes the service information at si's key
func (m *ServiceInformationManager) Delete(ctx context.Context, si *storage.ServiceInformation) (bool, error) {
	if si == nil {
		return false, fmt.Errorf("%w: service information is required", ErrValidation)
	}

	removed, err := func() (bool, error) {
		unlock := m.locks.lock(si.ServiceGroupID)
		defer unlock()
		_, removed, err := m.store.ServiceInformation.Delete(ctx, si.Key())
		return removed, err
	}()
	if removed {
		m.logger.Info("service information deleted",
			"participant", si.ServiceGroupID.URIEncoded(),
			"document_type", si.DocumentTypeID.URIEncoded())
		m.events.emit(ctx, EventServiceInformationDeleted, si.ServiceGroupID, si.DocumentTypeID)
	}
	return removed, err
}

// DeleteAllOfServiceGroup removes every service information of pid and
// returns how many were removed
func (m *ServiceInformationManager) DeleteAllOfServiceGroup(ctx context.Context, pid identifier.Participant) (int, error) {
	unlock := m.locks.lock(pid)
	defer unlock()
	return m.deleteAllOf(ctx, pid)
}

// deleteAllOf requires the participant lock. Persistence is flushed once.
func (m *ServiceInformationManager) deleteAllOf(ctx context.Context, pid identifier.Participant) (int, error) {
	infos := m.allOf(pid)
	if len(infos) == 0 {
		return 0, nil
	}

	count := 0
	err := m.store.ServiceInformation.PerformWithoutAutoSave(ctx, func() error {
		for _, si := range infos {
			_, removed, err := m.store.ServiceInformation.Delete(ctx, si.Key())
			if err != nil {
				return err
			}
			if removed {
				count++
			}
		}
		return nil
	})
	return count, err
}

// DeleteProcess removes one process from the service information at si's
// key and reports whether it existed
func (m *ServiceInformationManager) DeleteProcess(ctx context.Context, si *storage.ServiceInformation, processID identifier.Process) (bool, error) {
	if si == nil {
		return false, fmt.Errorf("%w: service information is required", ErrValidation)
	}

	removed, err := func() (bool, error) {
		unlock := m.locks.lock(si.ServiceGroupID)
		defer unlock()

		current, ok := m.store.ServiceInformation.Get(si.Key())
		if !ok {
			return false, fmt.Errorf("%w: service information %s", storage.ErrNotFound, si.Key())
		}
		if !current.DeleteProcess(processID) {
			return false, nil
		}
		if err := m.store.ServiceInformation.Update(ctx, current); err != nil {
			return false, err
		}
		return true, nil
	}()
	if removed {
		m.events.emit(ctx, EventServiceInformationUpdated, si.ServiceGroupID, si.DocumentTypeID)
	}
	return removed, err
}

// Get returns the service information of pid and docType
func (m *ServiceInformationManager) Get(pid identifier.Participant, docType identifier.DocumentType) (*storage.ServiceInformation, bool) {
	return m.store.ServiceInformation.Get(storage.DocumentKey(pid, docType))
}

// GetAllOfServiceGroup returns the service information of pid ordered by key
func (m *ServiceInformationManager) GetAllOfServiceGroup(pid identifier.Participant) []*storage.ServiceInformation {
	return m.allOf(pid)
}

func (m *ServiceInformationManager) allOf(pid identifier.Participant) []*storage.ServiceInformation {
	return m.store.ServiceInformation.GetAll(func(si *storage.ServiceInformation) bool {
		return si.ServiceGroupID.Equal(pid)
	})
}

// GetAll returns all service information ordered by key
func (m *ServiceInformationManager) GetAll() []*storage.ServiceInformation {
	return m.store.ServiceInformation.GetAll(nil)
}

// Count returns the number of service information records
func (m *ServiceInformationManager) Count() int {
	return m.store.ServiceInformation.Count()
}
