package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// EventType names a registry mutation
type EventType string

const (
	EventServiceGroupCreated       EventType = "service_group_created"
	EventServiceGroupUpdated       EventType = "service_group_updated"
	EventServiceGroupDeleted       EventType = "service_group_deleted"
	EventServiceInformationCreated EventType = "service_information_created"
	EventServiceInformationUpdated EventType = "service_information_updated"
	EventServiceInformationDeleted EventType = "service_information_deleted"
	EventRedirectCreated           EventType = "redirect_created"
	EventRedirectUpdated           EventType = "redirect_updated"
	EventRedirectDeleted           EventType = "redirect_deleted"
	EventBusinessCardCreated       EventType = "business_card_created"
	EventBusinessCardUpdated       EventType = "business_card_updated"
	EventBusinessCardDeleted       EventType = "business_card_deleted"
)

// Event describes a committed mutation. DocumentType is zero for
// participant level events.
type Event struct {
	Type         EventType
	Participant  identifier.Participant
	DocumentType identifier.DocumentType
	Time         time.Time
}

// Observer is notified after every committed mutation. Errors are logged;
// the mutation is not rolled back.
type Observer interface {
	Notify(ctx context.Context, e Event) error
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, e Event) error

// Notify implements Observer
func (f ObserverFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

// notifier fans events out to observers
type notifier struct {
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

func (n *notifier) add(o Observer) {
	n.observers = append(n.observers, o)
}

func (n *notifier) emit(ctx context.Context, t EventType, pid identifier.Participant, docType identifier.DocumentType) {
	e := Event{Type: t, Participant: pid, DocumentType: docType, Time: n.now()}
	for _, o := range n.observers {
		if err := o.Notify(ctx, e); err != nil {
			n.logger.Warn("observer failed",
				"event", string(t),
				"participant", pid.URIEncoded(),
				"error", err)
		}
	}
}
