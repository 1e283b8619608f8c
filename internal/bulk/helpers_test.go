package bulk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/sirosfoundation/go-smp/internal/registry"
	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// rejectingHook refuses SML registration of selected participants
type rejectingHook struct {
	*sml.MemoryHook
	reject map[string]bool
}

func (h *rejectingHook) Create(ctx context.Context, pid identifier.Participant) error {
	if h.reject[pid.URIEncoded()] {
		return errors.New("participant rejected by SML")
	}
	return h.MemoryHook.Create(ctx, pid)
}

type recordingIndexer struct {
	mu          sync.Mutex
	published   []string
	unpublished []string
}

func (r *recordingIndexer) Publish(_ context.Context, pid identifier.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, pid.URIEncoded())
	return nil
}

func (r *recordingIndexer) Unpublish(_ context.Context, pid identifier.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unpublished = append(r.unpublished, pid.URIEncoded())
	return nil
}

type fixture struct {
	managers *registry.Managers
	hook     *sml.MemoryHook
	indexer  *recordingIndexer
}

func newFixture(reject ...string) *fixture {
	mem := sml.NewMemoryHook(quietLogger)
	hook := &rejectingHook{MemoryHook: mem, reject: make(map[string]bool)}
	for _, r := range reject {
		hook.reject[r] = true
	}
	indexer := &recordingIndexer{}
	m := registry.New(registry.Options{
		Store:                storage.NewMemoryRegistry(quietLogger),
		Hook:                 hook,
		Indexer:              indexer,
		DirectoryIntegration: true,
		Logger:               quietLogger,
	})
	return &fixture{managers: m, hook: mem, indexer: indexer}
}

func (f *fixture) importer(cfg Config) *Importer {
	cfg.Managers = f.managers
	if cfg.Logger == nil {
		cfg.Logger = quietLogger
	}
	return NewImporter(cfg)
}

func (f *fixture) exporter() *Exporter {
	return NewExporter(f.managers, quietLogger)
}

func mustPID(v string) identifier.Participant {
	return identifier.MustParseParticipant("iso6523-actorid-upis::" + v)
}

// removeFailingPersister accepts saves and refuses removals
type removeFailingPersister[T any] struct{}

func (removeFailingPersister[T]) LoadAll(context.Context) ([]T, error)  { return nil, nil }
func (removeFailingPersister[T]) Save(context.Context, string, T) error { return nil }
func (removeFailingPersister[T]) Remove(context.Context, string) error {
	return errors.New("backend down")
}
