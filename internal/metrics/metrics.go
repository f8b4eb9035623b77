package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fluency"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive  prometheus.Gauge
	trialsStarted   *prometheus.CounterVec
	trialsCompleted *prometheus.CounterVec
	submissions     prometheus.Counter
	rejected        *prometheus.CounterVec
	primesShown     *prometheus.CounterVec
}

// New creates collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Experiment sessions currently held by the hub.",
		}),
		trialsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_started_total",
			Help:      "Trials started, by prime strategy.",
		}, []string{"strategy"}),
		trialsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_completed_total",
			Help:      "Trials that reached their deadline, by prime strategy.",
		}, []string{"strategy"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Words recorded across all trials.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_rejected_total",
			Help:      "Submissions refused, by reason.",
		}, []string{"reason"}),
		primesShown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "primes_shown_total",
			Help:      "Prime words put on screen, by prime strategy.",
		}, []string{"strategy"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsActive,
		m.trialsStarted,
		m.trialsCompleted,
		m.submissions,
		m.rejected,
		m.primesShown,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionOpened counts a session added to the hub
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionClosed counts a session removed from the hub
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// TrialStarted counts a trial that began running
func (m *Metrics) TrialStarted(strategy string) {
	if m == nil {
		return
	}
	m.trialsStarted.WithLabelValues(strategy).Inc()
}

// TrialCompleted counts a trial that reached its deadline
func (m *Metrics) TrialCompleted(strategy string) {
	if m == nil {
		return
	}
	m.trialsCompleted.WithLabelValues(strategy).Inc()
}

// SubmissionRecorded counts an accepted word
func (m *Metrics) SubmissionRecorded() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

// SubmissionRejected counts a refused submission by reason
func (m *Metrics) SubmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// PrimeShown counts a prime word put on screen
func (m *Metrics) PrimeShown(strategy string) {
	if m == nil {
		return
	}
	m.primesShown.WithLabelValues(strategy).Inc()
}
