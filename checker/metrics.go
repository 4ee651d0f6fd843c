package checker

import (
	"time"

	"github.com/aluiziolira/not200club/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the checker.
type Metrics struct {
	Registry      *prometheus.Registry
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
	ErrorsTotal   *prometheus.CounterVec
	IssuesTotal   *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CoachesTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	probes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "not200club_probes_total",
			Help: "Total URL probes by outcome.",
		},
		[]string{"outcome"},
	)
	probeDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "not200club_probe_duration_seconds",
			Help:    "Wall-clock latency of URL fetches.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "not200club_fetch_errors_total",
			Help: "Total failed fetches by error type.",
		},
		[]string{"error_type"},
	)
	issues := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "not200club_issues_total",
			Help: "Total issues found by slot and kind.",
		},
		[]string{"slot", "kind"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "not200club_cache_hits_total",
			Help: "Probes answered from the per-run result cache.",
		},
	)
	coaches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "not200club_coaches_total",
			Help: "Coach dispatches by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(probes, probeDuration, errorsTotal, issues, cacheHits, coaches)

	return &Metrics{
		Registry:      registry,
		ProbesTotal:   probes,
		ProbeDuration: probeDuration,
		ErrorsTotal:   errorsTotal,
		IssuesTotal:   issues,
		CacheHits:     cacheHits,
		CoachesTotal:  coaches,
	}
}

// IncProbe increments the probe counter for an outcome label.
func (m *Metrics) IncProbe(outcome string) {
	if m == nil {
		return
	}
	m.ProbesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a fetch duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ProbeDuration.Observe(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveIssues counts the issues found for a slot.
func (m *Metrics) ObserveIssues(slot models.Slot, issues []models.Issue) {
	if m == nil {
		return
	}
	for _, issue := range issues {
		m.IssuesTotal.WithLabelValues(slot.String(), issue.Kind.String()).Inc()
	}
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// IncCoach records the result of one coach dispatch.
func (m *Metrics) IncCoach(result string) {
	if m == nil {
		return
	}
	m.CoachesTotal.WithLabelValues(result).Inc()
}
