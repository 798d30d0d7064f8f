package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exocompare/domain/compare"
)

const namespace = "exocompare"

// Metrics holds the pipeline collectors on a private registry so tests and
// servers never share global state.
type Metrics struct {
	registry *prometheus.Registry

	// runs counts finished pipeline runs by status.
	runs *prometheus.CounterVec

	// stageDuration observes the wall time of each pipeline stage.
	stageDuration *prometheus.HistogramVec

	// ciGated counts effect estimates whose interval was withheld by the n_min gate.
	ciGated prometheus.Counter

	// ciComputed counts effect estimates that received a bootstrap interval.
	ciComputed prometheus.Counter
}

// New registers every collector plus the Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage (in seconds)",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		ciGated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ci_gated_total",
			Help:      "Effect estimates reported without an interval because a group was below n_min",
		}),
		ciComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ci_computed_total",
			Help:      "Effect estimates reported with a bootstrap interval",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun counts one finished run
func (m *Metrics) ObserveRun(status string) {
	m.runs.WithLabelValues(status).Inc()
}

// StartStage starts timing a stage; call the returned func when it ends.
func (m *Metrics) StartStage(stage string) func() {
	start := time.Now()
	return func() {
		m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// ObserveResult walks every effect estimate and counts gated and computed intervals.
func (m *Metrics) ObserveResult(res *compare.Result) (gated, computed int) {
	if res == nil || res.Metrics == nil {
		return 0, 0
	}
	for _, metric := range res.Metrics.Keys() {
		block, _ := res.Metrics.Get(metric)
		if block == nil || block.DiffVsBaseline == nil {
			continue
		}
		for _, group := range block.DiffVsBaseline.Keys() {
			e, _ := block.DiffVsBaseline.Get(group)
			if e.HasInterval() {
				computed++
			} else {
				gated++
			}
		}
	}
	m.ciGated.Add(float64(gated))
	m.ciComputed.Add(float64(computed))
	return gated, computed
}
