// Package metrics exposes Prometheus metrics for registry changes and bulk
// imports.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sirosfoundation/go-smp/internal/bulk"
	"github.com/sirosfoundation/go-smp/internal/registry"
)

const namespace = "smp"

// Metrics holds the collectors of one SMP instance
type Metrics struct {
	registry *prometheus.Registry

	RegistryEvents *prometheus.CounterVec
	ImportActions  *prometheus.CounterVec
	Imports        *prometheus.CounterVec
	ImportDuration prometheus.Histogram
}

var (
	_ registry.Observer = (*Metrics)(nil)
	_ bulk.Recorder     = (*Metrics)(nil)
)

// New creates the metrics on a private registry together with the Go and
// process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RegistryEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_events_total",
			Help:      "Registry changes by event type",
		}, []string{"type"}),
		ImportActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_actions_total",
			Help:      "Bulk import actions by action and result",
		}, []string{"action", "result"}),
		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Bulk import runs by final status",
		}, []string{"status"}),
		ImportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Duration of bulk import runs",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Notify implements registry.Observer
func (m *Metrics) Notify(_ context.Context, e registry.Event) error {
	m.RegistryEvents.WithLabelValues(string(e.Type)).Inc()
	return nil
}

// RecordImportAction implements bulk.Recorder
func (m *Metrics) RecordImportAction(action string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	m.ImportActions.WithLabelValues(action, result).Inc()
}

// ObserveImport records a finished import run
func (m *Metrics) ObserveImport(res *bulk.Result) {
	m.Imports.WithLabelValues(string(res.Status)).Inc()
	m.ImportDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
}

// WatchRegistry adds gauges reporting the current object counts of managers
func (m *Metrics) WatchRegistry(managers *registry.Managers) {
	f := promauto.With(m.registry)
	gauge := func(name, help string, count func() int) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(count()) })
	}
	gauge("service_groups", "Number of service groups", managers.ServiceGroups.Count)
	gauge("service_information", "Number of service information entries", managers.ServiceInformation.Count)
	gauge("redirects", "Number of redirects", managers.Redirects.Count)
	gauge("business_cards", "Number of business cards", managers.BusinessCards.Count)
}
