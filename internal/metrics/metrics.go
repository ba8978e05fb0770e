// Package metrics exposes repository counters through a Prometheus registry.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can take an optional collector without guarding every call.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "mdrepo"

// Metrics holds the repository collectors and the registry they are
// registered with.
type Metrics struct {
	Registry *prometheus.Registry

	EntriesCreated   *prometheus.CounterVec
	EntriesRemoved   *prometheus.CounterVec
	AuthDenied       *prometheus.CounterVec
	QuotaRejected    *prometheus.CounterVec
	QuotaFillBytes   *prometheus.GaugeVec
	CacheLookups     *prometheus.CounterVec
	EventsFired      *prometheus.CounterVec
	ReindexDuration  *prometheus.HistogramVec
	StoreRollbacks   prometheus.Counter
	ProvenanceAppend prometheus.Counter
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EntriesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entries_created_total",
			Help:      "Entries created, by context and graph type.",
		}, []string{"context", "graph_type"}),
		EntriesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entries_removed_total",
			Help:      "Entries removed, by context.",
		}, []string{"context"}),
		AuthDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "authorization_denied_total",
			Help:      "Denied authorization checks, by access property.",
		}, []string{"property"}),
		QuotaRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "quota_rejected_total",
			Help:      "Data writes rejected for exceeding the context quota.",
		}, []string{"context"}),
		QuotaFillBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "quota_fill_bytes",
			Help:      "Cached quota fill level per context.",
		}, []string{"context"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "identity_cache_lookups_total",
			Help:      "Identity cache lookups, by result (hit or miss).",
		}, []string{"result"}),
		EventsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_fired_total",
			Help:      "Domain events fired, by kind.",
		}, []string{"kind"}),
		ReindexDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reindex_duration_seconds",
			Help:      "Time spent rebuilding a context index from the store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"context"}),
		StoreRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "store_rollbacks_total",
			Help:      "Transactions rolled back after a failed operation.",
		}),
		ProvenanceAppend: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "provenance_revisions_total",
			Help:      "Metadata revisions appended to provenance ledgers.",
		}),
	}

	m.Registry.MustRegister(
		m.EntriesCreated,
		m.EntriesRemoved,
		m.AuthDenied,
		m.QuotaRejected,
		m.QuotaFillBytes,
		m.CacheLookups,
		m.EventsFired,
		m.ReindexDuration,
		m.StoreRollbacks,
		m.ProvenanceAppend,
	)
	return m
}

func (m *Metrics) EntryCreated(contextID, graphType string) {
	if m == nil {
		return
	}
	m.EntriesCreated.WithLabelValues(contextID, graphType).Inc()
}

func (m *Metrics) EntryRemoved(contextID string) {
	if m == nil {
		return
	}
	m.EntriesRemoved.WithLabelValues(contextID).Inc()
}

func (m *Metrics) Denied(property string) {
	if m == nil {
		return
	}
	m.AuthDenied.WithLabelValues(property).Inc()
}

func (m *Metrics) QuotaExceeded(contextID string) {
	if m == nil {
		return
	}
	m.QuotaRejected.WithLabelValues(contextID).Inc()
}

func (m *Metrics) FillLevel(contextID string, bytes int64) {
	if m == nil {
		return
	}
	m.QuotaFillBytes.WithLabelValues(contextID).Set(float64(bytes))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.EventsFired.WithLabelValues(kind).Inc()
}

// ObserveReindex records how long since start a context rebuild took.
func (m *Metrics) ObserveReindex(contextID string, start time.Time) {
	if m == nil {
		return
	}
	m.ReindexDuration.WithLabelValues(contextID).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.StoreRollbacks.Inc()
}

func (m *Metrics) Revision() {
	if m == nil {
		return
	}
	m.ProvenanceAppend.Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
