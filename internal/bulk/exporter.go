package bulk

import (
	"io"
	"log/slog"
	"sort"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-smp/internal/registry"
	"github.com/sirosfoundation/go-smp/internal/storage"
)

// Exporter writes registry content as an <smp-data> document. The output
// has no timestamps of its own, so equal registry content gives equal bytes.
type Exporter struct {
	managers *registry.Managers
	logger   *slog.Logger
}

// NewExporter creates an Exporter
func NewExporter(managers *registry.Managers, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{managers: managers, logger: logger.With("component", "export")}
}

// Export builds the document for groups, sorted by participant. Business
// cards follow the groups in the same order when includeBusinessCards is set.
func (e *Exporter) Export(groups []*storage.ServiceGroup, includeBusinessCards bool) *etree.Document {
	sorted := append([]*storage.ServiceGroup(nil), groups...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	doc, root := NewDocument()
	for _, sg := range sorted {
		WriteServiceGroup(root, sg,
			e.managers.ServiceInformation.GetAllOfServiceGroup(sg.ParticipantID),
			e.managers.Redirects.GetAllOfServiceGroup(sg.ParticipantID))
	}

	cards := 0
	if includeBusinessCards {
		for _, sg := range sorted {
			if bc, ok := e.managers.BusinessCards.Get(sg.ParticipantID); ok {
				WriteBusinessCard(root, bc)
				cards++
			}
		}
	}

	e.logger.Info("export built", "service_groups", len(sorted), "business_cards", cards)
	return doc
}

// ExportAll exports every service group
func (e *Exporter) ExportAll(includeBusinessCards bool) *etree.Document {
	return e.Export(e.managers.ServiceGroups.GetAll(), includeBusinessCards)
}

// WriteTo writes the indented document for groups to w
func (e *Exporter) WriteTo(w io.Writer, groups []*storage.ServiceGroup, includeBusinessCards bool) (int64, error) {
	doc := e.Export(groups, includeBusinessCards)
	doc.Indent(2)
	return doc.WriteTo(w)
}
