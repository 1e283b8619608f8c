package registry

import (
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-smp/internal/directory"
	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/storage"
)

// Options configures New
type Options struct {
	Store *storage.Registry

	// Hook defaults to sml.NoopHook
	Hook sml.Hook

	// Indexer receives business card changes when DirectoryIntegration is set
	Indexer              directory.Indexer
	DirectoryIntegration bool

	Observers []Observer
	Logger    *slog.Logger

	// Now is the clock used for timestamps; defaults to time.Now
	Now func() time.Time
}

// Managers bundles the managers of one registry
type Managers struct {
	ServiceGroups      *ServiceGroupManager
	ServiceInformation *ServiceInformationManager
	Redirects          *RedirectManager
	BusinessCards      *BusinessCardManager

	events *notifier
}

// New wires the managers around opts.Store
func New(opts Options) *Managers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hook := opts.Hook
	if hook == nil {
		hook = sml.NoopHook{}
	}
	indexer := opts.Indexer
	if indexer == nil {
		indexer = directory.Noop{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	locks := &participantLocks{}
	events := &notifier{logger: logger.With("component", "events"), now: now}

	infos := &ServiceInformationManager{
		store:  opts.Store,
		locks:  locks,
		events: events,
		logger: logger.With("component", "service-information"),
	}
	redirects := &RedirectManager{
		store:  opts.Store,
		locks:  locks,
		events: events,
		logger: logger.With("component", "redirects"),
	}
	cards := &BusinessCardManager{
		store:   opts.Store,
		locks:   locks,
		indexer: indexer,
		enabled: opts.DirectoryIntegration,
		events:  events,
		logger:  logger.With("component", "business-cards"),
	}
	groups := &ServiceGroupManager{
		store:     opts.Store,
		hook:      hook,
		locks:     locks,
		infos:     infos,
		redirects: redirects,
		events:    events,
		logger:    logger.With("component", "service-groups"),
		now:       now,
	}

	events.add(cards)
	for _, o := range opts.Observers {
		events.add(o)
	}

	return &Managers{
		ServiceGroups:      groups,
		ServiceInformation: infos,
		Redirects:          redirects,
		BusinessCards:      cards,
		events:             events,
	}
}

// AddObserver registers o for all following mutations. It must not be
// called concurrently with mutations.
func (m *Managers) AddObserver(o Observer) {
	m.events.add(o)
}
