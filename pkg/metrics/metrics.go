package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	ObserveTick(task string, duration time.Duration, err error)
	IncDispatch(sink string, err error)
	IncDeduplicated(sink string)
	IncUnrecognized(collection string, n int)
	SetActiveEmbargoes(mode string, n int)
	IncShowChanges(collection, change string)
	// Handler serves the registry, or nil when metrics are disabled.
	Handler() http.Handler
}

type Metrics struct {
	registry     *prometheus.Registry
	ticksTotal   *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	dispatches   *prometheus.CounterVec
	deduplicated *prometheus.CounterVec
	unrecognized *prometheus.CounterVec
	embargoes    *prometheus.GaugeVec
	showChanges  *prometheus.CounterVec
}

func (m *Metrics) ObserveTick(task string, duration time.Duration, err error) {
	m.ticksTotal.WithLabelValues(task, outcome(err)).Inc()
	m.tickDuration.WithLabelValues(task).Observe(duration.Seconds())
}

func (m *Metrics) IncDispatch(sink string, err error) {
	m.dispatches.WithLabelValues(sink, outcome(err)).Inc()
}

func (m *Metrics) IncDeduplicated(sink string) {
	m.deduplicated.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncUnrecognized(collection string, n int) {
	m.unrecognized.WithLabelValues(collection).Add(float64(n))
}

func (m *Metrics) SetActiveEmbargoes(mode string, n int) {
	m.embargoes.WithLabelValues(mode).Set(float64(n))
}

func (m *Metrics) IncShowChanges(collection, change string) {
	m.showChanges.WithLabelValues(collection, change).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// New returns a Prometheus-backed recorder on its own registry, or a no-op
// recorder when disabled.
func New(enabled bool) Recorder {
	if !enabled {
		return &noopMetrics{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ticksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showwatch_task_ticks_total",
			Help: "Total number of periodic task ticks",
		}, []string{"task", "outcome"}),

		tickDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "showwatch_task_tick_duration_seconds",
			Help:    "Periodic task tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),

		dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showwatch_dispatches_total",
			Help: "Total number of notifications sent per sink",
		}, []string{"sink", "outcome"}),

		deduplicated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showwatch_dispatches_deduplicated_total",
			Help: "Total number of notifications suppressed as duplicates",
		}, []string{"sink"}),

		unrecognized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showwatch_unrecognized_dates_total",
			Help: "Total number of listing dates in an unknown format",
		}, []string{"collection"}),

		embargoes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "showwatch_active_embargoes",
			Help: "Number of active spoiler embargoes per mode",
		}, []string{"mode"}),

		showChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showwatch_show_changes_total",
			Help: "Total number of show inserts, updates and purges",
		}, []string{"collection", "change"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) ObserveTick(_ string, _ time.Duration, _ error) {}
func (n *noopMetrics) IncDispatch(_ string, _ error)                  {}
func (n *noopMetrics) IncDeduplicated(_ string)                       {}
func (n *noopMetrics) IncUnrecognized(_ string, _ int)                {}
func (n *noopMetrics) SetActiveEmbargoes(_ string, _ int)             {}
func (n *noopMetrics) IncShowChanges(_, _ string)                     {}
func (n *noopMetrics) Handler() http.Handler                          { return nil }
