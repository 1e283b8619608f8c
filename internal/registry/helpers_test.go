package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

var (
	pidA   = identifier.MustParseParticipant("iso6523-actorid-upis::9915:a")
	pidB   = identifier.MustParseParticipant("iso6523-actorid-upis::9915:b")
	docD1  = identifier.MustParseDocumentType("busdox-docid-qns::D1")
	docD2  = identifier.MustParseDocumentType("busdox-docid-qns::D2")
	procP1 = identifier.MustParseProcess("cenbii-procid-ubl::P1")
	procP2 = identifier.MustParseProcess("cenbii-procid-ubl::P2")

	errBackend = errors.New("backend down")
)

func testServiceInformation(pid identifier.Participant, doc identifier.DocumentType, processes ...identifier.Process) *storage.ServiceInformation {
	si := &storage.ServiceInformation{ServiceGroupID: pid, DocumentTypeID: doc}
	for _, p := range processes {
		si.Processes = append(si.Processes, &storage.Process{
			ProcessID: p,
			Endpoints: []*storage.Endpoint{{
				TransportProfile:  "busdox-transport-as2",
				EndpointReference: "https://ap.example.org/as2",
			}},
		})
	}
	return si
}

// switchPersister accepts writes until told to fail
type switchPersister[T any] struct {
	mu         sync.Mutex
	failSave   bool
	failRemove bool
}

func (p *switchPersister[T]) LoadAll(context.Context) ([]T, error) { return nil, nil }

func (p *switchPersister[T]) Save(context.Context, string, T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSave {
		return errBackend
	}
	return nil
}

func (p *switchPersister[T]) Remove(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failRemove {
		return errBackend
	}
	return nil
}

func (p *switchPersister[T]) set(save, remove bool) {
	p.mu.Lock()
	p.failSave, p.failRemove = save, remove
	p.mu.Unlock()
}

// recordingIndexer records directory calls
type recordingIndexer struct {
	mu          sync.Mutex
	published   []string
	unpublished []string
	err         error
}

func (r *recordingIndexer) Publish(_ context.Context, pid identifier.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, pid.URIEncoded())
	return r.err
}

func (r *recordingIndexer) Unpublish(_ context.Context, pid identifier.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unpublished = append(r.unpublished, pid.URIEncoded())
	return r.err
}

// eventLog is an Observer collecting event types
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Notify(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}
