// Package telemetry exposes the indexing pipeline's counters to Prometheus.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fidx/internal/fidx"
	"fidx/internal/watcher"
)

const namespace = "fidx"

// Metrics implements fidx.Metrics on a Prometheus registry.
type Metrics struct {
	eventsApplied *prometheus.CounterVec
	eventsFailed  *prometheus.CounterVec
	eventsDropped prometheus.Counter
	scanEntries   *prometheus.CounterVec
	autoTags      prometheus.Counter
}

var _ fidx.Metrics = (*Metrics)(nil)

// NewMetrics creates the pipeline collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Filesystem events applied to the index, by kind.",
		}, []string{"kind"}),
		eventsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Filesystem events that could not be applied, by kind.",
		}, []string{"kind"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the queue was full.",
		}),
		scanEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_entries_total",
			Help:      "Entries visited by directory scans, by result.",
		}, []string{"result"}),
		autoTags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_tags_applied_total",
			Help:      "Tags attached to files by the rule engine.",
		}),
	}
	reg.MustRegister(m.eventsApplied, m.eventsFailed, m.eventsDropped, m.scanEntries, m.autoTags)
	return m
}

func (m *Metrics) EventApplied(kind watcher.Kind) {
	m.eventsApplied.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) EventFailed(kind watcher.Kind) {
	m.eventsFailed.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) ScanEntry(result string) {
	m.scanEntries.WithLabelValues(result).Inc()
}

func (m *Metrics) AutoTagsApplied(n int) {
	if n > 0 {
		m.autoTags.Add(float64(n))
	}
}

// EventDropped counts one event rejected by a full queue. It matches the
// signature of watcher.WithDropHook.
func (m *Metrics) EventDropped(watcher.FileEvent) {
	m.eventsDropped.Inc()
}

// RegisterQueueDepth exposes the current length of q as a gauge.
func RegisterQueueDepth(reg prometheus.Registerer, q *watcher.Queue) error {
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Events waiting in the queue.",
	}, func() float64 { return float64(q.Len()) }))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
