package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sirosfoundation/go-smp/internal/registry"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/users"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// TracerName is the instrumentation scope of import spans
const TracerName = "github.com/sirosfoundation/go-smp/internal/bulk"

// DefaultWorkers is the pool size when Options.Workers is not set
const DefaultWorkers = 8

// Status of an import run
type Status string

const (
	// StatusCompleted means all phases ran; individual items may have failed
	StatusCompleted Status = "completed"
	// StatusAborted means nothing was changed
	StatusAborted Status = "aborted"
)

// Options control one import run
type Options struct {
	// Overwrite replaces existing service groups and business cards;
	// otherwise they are skipped
	Overwrite bool

	// DefaultOwner is used when an owner is missing or unknown
	DefaultOwner string

	// Workers bounds the parallelism of each phase
	Workers int

	// BusinessCards enables import of <businesscard> elements
	BusinessCards bool

	// ExistingServiceGroups and ExistingBusinessCards optionally replace
	// the registry lookups during analysis (participant URI keys)
	ExistingServiceGroups map[string]struct{}
	ExistingBusinessCards map[string]struct{}
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return DefaultWorkers
	}
	return o.Workers
}

// Result describes a finished import run
type Result struct {
	ID         string
	Status     Status
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
	Log        *ActionLog
	Summary    *Summary
}

// Config configures an Importer
type Config struct {
	Managers *registry.Managers

	// Resolver validates owners; nil accepts every owner ID
	Resolver users.Resolver

	// Factory parses identifiers; defaults to identifier.DefaultFactory
	Factory *identifier.Factory

	Tracer        trace.Tracer
	Recorder      Recorder
	OwnerCacheTTL time.Duration
	Logger        *slog.Logger
}

// Importer applies <smp-data> documents to the registry
type Importer struct {
	managers *registry.Managers
	resolver users.Resolver
	factory  *identifier.Factory
	tracer   trace.Tracer
	recorder Recorder
	ownerTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewImporter creates an Importer
func NewImporter(cfg Config) *Importer {
	im := &Importer{
		managers: cfg.Managers,
		resolver: cfg.Resolver,
		factory:  cfg.Factory,
		tracer:   cfg.Tracer,
		recorder: cfg.Recorder,
		ownerTTL: cfg.OwnerCacheTTL,
		logger:   cfg.Logger,
		now:      time.Now,
	}
	if im.resolver == nil {
		im.resolver = acceptAll{}
	}
	if im.factory == nil {
		im.factory = identifier.DefaultFactory
	}
	if im.tracer == nil {
		im.tracer = otel.Tracer(TracerName)
	}
	if im.recorder == nil {
		im.recorder = noopRecorder{}
	}
	if im.ownerTTL == 0 {
		im.ownerTTL = 5 * time.Minute
	}
	if im.logger == nil {
		im.logger = slog.Default()
	}
	return im
}

// groupItem is an analysed <servicegroup>
type groupItem struct {
	data      *ServiceGroupData
	key       string
	owner     string
	overwrite bool
	skip      bool
}

// cardItem is an analysed <businesscard>
type cardItem struct {
	card      *storage.BusinessCard
	key       string
	overwrite bool
	skip      bool
}

// run holds the shared state of one import
type run struct {
	opts    Options
	log     *ActionLog
	summary *Summary
	owners  *ownerCache

	mu             sync.Mutex
	analysisErrors int
	preDeleted     map[string]bool
	deleteFailed   map[string]bool
	droppedCards   map[string]bool
}

func (r *run) analysisError(participant, msg string, err error) {
	r.mu.Lock()
	r.analysisErrors++
	r.mu.Unlock()
	r.log.error(participant, msg, err)
}

func (r *run) mark(set map[string]bool, key string) {
	r.mu.Lock()
	set[key] = true
	r.mu.Unlock()
}

func (r *run) is(set map[string]bool, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return set[key]
}

// ImportReader reads a document from rd and imports it
func (im *Importer) ImportReader(ctx context.Context, rd io.Reader, opts Options) (*Result, error) {
	root, err := ReadDocument(rd)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, root, opts)
}

// Import applies the <smp-data> tree under root. Analysis runs first; if it
// finds any error, or nothing to import, the run is aborted before any
// mutation. Otherwise failures are isolated per item and reported in the
// result. The error return is reserved for malformed roots.
func (im *Importer) Import(ctx context.Context, root *etree.Element, opts Options) (*Result, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := im.logger.With("import_id", id)
	r := &run{
		opts:         opts,
		log:          newActionLog(logger, im.now),
		summary:      newSummary(im.recorder),
		owners:       newOwnerCache(im.resolver, im.ownerTTL),
		preDeleted:   make(map[string]bool),
		deleteFailed: make(map[string]bool),
		droppedCards: make(map[string]bool),
	}
	result := &Result{ID: id, StartedAt: im.now(), Log: r.log, Summary: r.summary}

	ctx, span := im.tracer.Start(ctx, "bulk.import", trace.WithAttributes(
		attribute.String("import.id", id),
		attribute.Bool("import.overwrite", opts.Overwrite),
		attribute.Int("import.workers", opts.workers()),
	))
	defer span.End()

	groups := im.analyzeGroups(ctx, r, root.SelectElements(ElemServiceGroup))

	var cards []*cardItem
	if opts.BusinessCards {
		cards = im.analyzeCards(ctx, r, root.SelectElements(ElemBusinessCard), groups)
	} else if n := len(root.SelectElements(ElemBusinessCard)); n > 0 {
		r.log.info("", fmt.Sprintf("ignoring %d business cards, business card import is disabled", n))
	}

	toImport := 0
	for _, g := range groups {
		if !g.skip {
			toImport++
		}
	}
	cardsToImport := 0
	for _, c := range cards {
		if !c.skip {
			cardsToImport++
		}
	}

	switch {
	case r.analysisErrors > 0:
		result.Status = StatusAborted
		result.Reason = fmt.Sprintf("%d errors found during analysis, nothing was imported", r.analysisErrors)
	case toImport == 0 && cardsToImport == 0:
		result.Status = StatusAborted
		result.Reason = "nothing to import"
	}
	if result.Status == StatusAborted {
		r.log.error("", result.Reason, nil)
		span.SetStatus(codes.Error, result.Reason)
		result.FinishedAt = im.now()
		return result, nil
	}

	r.log.info("", fmt.Sprintf("importing %d service groups and %d business cards", toImport, cardsToImport))

	if opts.BusinessCards {
		im.deleteGroups(registry.KeepBusinessCards(ctx), r, groups)
	} else {
		im.deleteGroups(ctx, r, groups)
	}
	im.createGroups(ctx, r, groups)
	if opts.BusinessCards {
		im.deleteCards(ctx, r, groups, cards)
		im.createCards(ctx, r, cards)
	}

	result.Status = StatusCompleted
	result.FinishedAt = im.now()
	totals := r.summary.Totals()
	span.SetAttributes(attribute.Int("import.success", totals.Success), attribute.Int("import.errors", totals.Error))
	if totals.Error > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d actions failed", totals.Error))
	}
	logger.Info("import finished",
		"success", totals.Success,
		"errors", totals.Error,
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

// phase runs task for 0..n-1 on the bounded pool and waits for all of
// them. Tasks not started before ctx is cancelled are reported through
// cancelled instead.
func (im *Importer) phase(ctx context.Context, r *run, name string, n int, task func(ctx context.Context, i int), cancelled func(i int, err error)) {
	ctx, span := im.tracer.Start(ctx, "bulk.import."+name, trace.WithAttributes(attribute.Int("items", n)))
	defer span.End()

	g := new(errgroup.Group)
	g.SetLimit(r.opts.workers())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				cancelled(i, err)
				return nil
			}
			// a started item always runs to completion
			task(context.WithoutCancel(ctx), i)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
}

// Phase 1: analysis

func (im *Importer) analyzeGroups(ctx context.Context, r *run, elems []*etree.Element) []*groupItem {
	items := make([]*groupItem, len(elems))

	im.phase(ctx, r, "analyze", len(elems), func(ctx context.Context, i int) {
		items[i] = im.analyzeGroup(ctx, r, elems[i])
	}, func(i int, err error) {
		r.analysisError("", "analysis cancelled", err)
	})

	// duplicates are detected in document order
	seen := make(map[string]bool)
	var out []*groupItem
	for _, it := range items {
		if it == nil {
			continue
		}
		if seen[it.key] {
			r.analysisError(it.key, "service group appears more than once", storage.ErrConflict)
			continue
		}
		seen[it.key] = true
		out = append(out, it)
	}
	return out
}

func (im *Importer) analyzeGroup(ctx context.Context, r *run, e *etree.Element) *groupItem {
	data, err := ParseServiceGroup(im.factory, e)
	if err != nil {
		r.analysisError(e.SelectAttrValue(AttrParticipant, ""), "failed to parse service group", err)
		return nil
	}
	key := storage.ServiceGroupKey(data.Participant)

	owner, ok := im.owner(ctx, r, key, data.Owner)
	if !ok {
		return nil
	}

	it := &groupItem{data: data, key: key, owner: owner}
	if im.groupExists(r, data.Participant) {
		if !r.opts.Overwrite {
			r.log.warn(key, "service group already exists and is skipped")
			it.skip = true
			return it
		}
		it.overwrite = true
		r.log.info(key, "service group already exists and is overwritten")
	}
	return it
}

func (im *Importer) owner(ctx context.Context, r *run, key, ownerID string) (string, bool) {
	if ownerID != "" {
		if u, ok := r.owners.resolve(ctx, ownerID); ok {
			return u.ID, true
		}
	}
	if r.opts.DefaultOwner == "" {
		r.analysisError(key, fmt.Sprintf("owner %q is unknown and no default owner is set", ownerID), nil)
		return "", false
	}
	r.log.warn(key, fmt.Sprintf("owner %q is unknown, using default owner %q", ownerID, r.opts.DefaultOwner))
	return r.opts.DefaultOwner, true
}

func (im *Importer) groupExists(r *run, pid identifier.Participant) bool {
	if r.opts.ExistingServiceGroups != nil {
		_, ok := r.opts.ExistingServiceGroups[storage.ServiceGroupKey(pid)]
		return ok
	}
	return im.managers.ServiceGroups.Contains(pid)
}

func (im *Importer) cardExists(r *run, pid identifier.Participant) bool {
	if r.opts.ExistingBusinessCards != nil {
		_, ok := r.opts.ExistingBusinessCards[storage.ServiceGroupKey(pid)]
		return ok
	}
	_, ok := im.managers.BusinessCards.Get(pid)
	return ok
}

// analyzeCards runs after all groups are analysed so a card can refer to a
// group created by the same import
func (im *Importer) analyzeCards(ctx context.Context, r *run, elems []*etree.Element, groups []*groupItem) []*cardItem {
	imported := make(map[string]bool, len(groups))
	for _, g := range groups {
		if !g.skip {
			imported[g.key] = true
		}
	}

	items := make([]*cardItem, len(elems))
	im.phase(ctx, r, "analyze-business-cards", len(elems), func(_ context.Context, i int) {
		e := elems[i]
		bc, err := ParseBusinessCard(im.factory, e)
		if err != nil {
			r.analysisError(e.SelectAttrValue(AttrParticipant, ""), "failed to parse business card", err)
			return
		}
		key := bc.Key()
		if !imported[key] && !im.groupExists(r, bc.ServiceGroupID) {
			r.analysisError(key, "business card refers to an unknown service group", storage.ErrNotFound)
			return
		}

		it := &cardItem{card: bc, key: key}
		if im.cardExists(r, bc.ServiceGroupID) {
			if !r.opts.Overwrite {
				r.log.warn(key, "business card already exists and is skipped")
				it.skip = true
			} else {
				it.overwrite = true
			}
		}
		items[i] = it
	}, func(i int, err error) {
		r.analysisError("", "analysis cancelled", err)
	})

	seen := make(map[string]bool)
	var out []*cardItem
	for _, it := range items {
		if it == nil {
			continue
		}
		if seen[it.key] {
			r.analysisError(it.key, "business card appears more than once", storage.ErrConflict)
			continue
		}
		seen[it.key] = true
		out = append(out, it)
	}
	return out
}

// Phase 2: delete overwritten groups. The SML registration is kept.

func (im *Importer) deleteGroups(ctx context.Context, r *run, groups []*groupItem) {
	var todo []*groupItem
	for _, g := range groups {
		if g.overwrite {
			todo = append(todo, g)
		}
	}

	im.phase(ctx, r, "delete-service-groups", len(todo), func(ctx context.Context, i int) {
		g := todo[i]
		if _, err := im.managers.ServiceGroups.Delete(ctx, g.data.Participant, false); err != nil {
			r.summary.onError(ActionDeleteServiceGroup)
			r.mark(r.deleteFailed, g.key)
			r.log.error(g.key, "failed to delete existing service group", err)
			return
		}
		r.summary.onSuccess(ActionDeleteServiceGroup)
		r.mark(r.preDeleted, g.key)
		r.log.info(g.key, "existing service group deleted")
	}, func(i int, err error) {
		r.summary.onError(ActionDeleteServiceGroup)
		r.mark(r.deleteFailed, todo[i].key)
		r.log.error(todo[i].key, "deletion not started", err)
	})
}

// Phase 3: create groups with their service information and redirects

func (im *Importer) createGroups(ctx context.Context, r *run, groups []*groupItem) {
	var todo []*groupItem
	for _, g := range groups {
		if !g.skip {
			todo = append(todo, g)
		}
	}

	im.phase(ctx, r, "create-service-groups", len(todo), func(ctx context.Context, i int) {
		im.createGroup(ctx, r, todo[i])
	}, func(i int, err error) {
		r.summary.onError(ActionCreateServiceGroup)
		r.mark(r.droppedCards, todo[i].key)
		r.log.error(todo[i].key, "creation not started", err)
	})
}

func (im *Importer) createGroup(ctx context.Context, r *run, g *groupItem) {
	if r.is(r.deleteFailed, g.key) {
		r.summary.onError(ActionCreateServiceGroup)
		r.mark(r.droppedCards, g.key)
		r.log.error(g.key, "service group is not re-created because its deletion failed", nil)
		return
	}

	// a pre-deleted group is still registered in the SML
	registerInSML := !r.is(r.preDeleted, g.key)
	pid := g.data.Participant

	if _, err := im.managers.ServiceGroups.Create(ctx, g.owner, pid, g.data.Extension, registerInSML); err != nil {
		r.summary.onError(ActionCreateServiceGroup)
		r.mark(r.droppedCards, g.key)
		r.log.error(g.key, "failed to create service group", err)
		return
	}
	r.summary.onSuccess(ActionCreateServiceGroup)

	failed := 0
	for _, si := range g.data.Infos {
		if err := im.managers.ServiceInformation.Merge(ctx, si, registry.MergeReplace); err != nil {
			failed++
			r.summary.onError(ActionCreateServiceInfo)
			r.log.error(g.key, "failed to create service information "+si.DocumentTypeID.URIEncoded(), err)
			continue
		}
		r.summary.onSuccess(ActionCreateServiceInfo)
	}
	for _, rd := range g.data.Redirects {
		_, err := im.managers.Redirects.CreateOrUpdate(ctx, pid, rd.DocumentTypeID,
			rd.TargetHref, rd.SubjectUniqueIdentifier, rd.Certificate, rd.Extension)
		if err != nil {
			failed++
			r.summary.onError(ActionCreateRedirect)
			r.log.error(g.key, "failed to create redirect "+rd.DocumentTypeID.URIEncoded(), err)
			continue
		}
		r.summary.onSuccess(ActionCreateRedirect)
	}

	msg := fmt.Sprintf("service group imported with %d service information and %d redirects",
		len(g.data.Infos), len(g.data.Redirects))
	if failed > 0 {
		r.log.warn(g.key, fmt.Sprintf("%s, %d failed", msg, failed))
		return
	}
	r.log.success(g.key, msg)
}

// Phase 4: delete overwritten business cards without directory sync. Cards
// of pre-deleted groups that are not re-imported are deleted with sync.

type cardDeletion struct {
	pid  identifier.Participant
	key  string
	sync bool
}

func (im *Importer) deleteCards(ctx context.Context, r *run, groups []*groupItem, cards []*cardItem) {
	var todo []cardDeletion
	staged := make(map[string]bool)
	for _, c := range cards {
		if c.overwrite && !r.is(r.droppedCards, c.key) {
			staged[c.key] = true
			todo = append(todo, cardDeletion{pid: c.card.ServiceGroupID, key: c.key})
		}
	}
	if im.managers.BusinessCards.DirectoryEnabled() {
		for _, g := range groups {
			if staged[g.key] || !r.is(r.preDeleted, g.key) {
				continue
			}
			if _, ok := im.managers.BusinessCards.Get(g.data.Participant); ok {
				todo = append(todo, cardDeletion{pid: g.data.Participant, key: g.key, sync: true})
			}
		}
	}

	im.phase(ctx, r, "delete-business-cards", len(todo), func(ctx context.Context, i int) {
		d := todo[i]
		if _, err := im.managers.BusinessCards.Delete(ctx, d.pid, d.sync); err != nil {
			r.summary.onError(ActionDeleteBusinessCard)
			r.mark(r.droppedCards, d.key)
			r.log.error(d.key, "failed to delete existing business card", err)
			return
		}
		r.summary.onSuccess(ActionDeleteBusinessCard)
		if d.sync {
			r.log.info(d.key, "business card of overwritten service group deleted")
		}
	}, func(i int, err error) {
		r.summary.onError(ActionDeleteBusinessCard)
		r.mark(r.droppedCards, todo[i].key)
		r.log.error(todo[i].key, "business card deletion not started", err)
	})
}

// Phase 5: create business cards and publish them

func (im *Importer) createCards(ctx context.Context, r *run, cards []*cardItem) {
	var todo []*cardItem
	for _, c := range cards {
		if c.skip {
			continue
		}
		if r.is(r.droppedCards, c.key) {
			r.log.warn(c.key, "business card is not imported because its service group failed")
			continue
		}
		todo = append(todo, c)
	}

	im.phase(ctx, r, "create-business-cards", len(todo), func(ctx context.Context, i int) {
		c := todo[i]
		if _, err := im.managers.BusinessCards.CreateOrUpdate(ctx, c.card.ServiceGroupID, c.card.Entities, true); err != nil {
			r.summary.onError(ActionCreateBusinessCard)
			r.log.error(c.key, "failed to create business card", err)
			return
		}
		r.summary.onSuccess(ActionCreateBusinessCard)
		r.log.success(c.key, fmt.Sprintf("business card imported with %d entities", len(c.card.Entities)))
	}, func(i int, err error) {
		r.summary.onError(ActionCreateBusinessCard)
		r.log.error(todo[i].key, "business card creation not started", err)
	})
}

// Errors returns the error entries of the log
func (res *Result) Errors() []LogEntry {
	var out []LogEntry
	for _, e := range res.Log.Entries() {
		if e.Level == LevelError {
			out = append(out, e)
		}
	}
	return out
}

// Err summarises a result as an error: nil for a completed run without
// failed actions
func (res *Result) Err() error {
	if res.Status == StatusAborted {
		return errors.New(res.Reason)
	}
	if t := res.Summary.Totals(); t.Error > 0 {
		return fmt.Errorf("%d import actions failed", t.Error)
	}
	return nil
}
