package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the application. A nil *Metrics
// records nothing, so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Journey metrics
	JourneysStarted prometheus.Counter
	NodesCreated    *prometheus.CounterVec
	NodesRevealed   prometheus.Counter
	Questions       *prometheus.CounterVec
	Reflections     *prometheus.CounterVec
	Topics          *prometheus.CounterVec
}

// NewMetrics creates the collectors in their own registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		JourneysStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journeys_started_total",
				Help:      "Total number of journeys started",
			},
		),
		NodesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_created_total",
				Help:      "Total number of exploration nodes created",
			},
			[]string{"kind"},
		),
		NodesRevealed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_revealed_total",
				Help:      "Total number of nodes made visible",
			},
		),
		Questions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "questions_total",
				Help:      "Total number of node questions, by answer outcome",
			},
			[]string{"outcome"},
		),
		Reflections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reflections_total",
				Help:      "Total number of reflections, by kind",
			},
			[]string{"kind"},
		),
		Topics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topics_proposed_total",
				Help:      "Total number of topic words submitted, by verdict",
			},
			[]string{"verdict"},
		),
	}

	registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.JourneysStarted,
		m.NodesCreated,
		m.NodesRevealed,
		m.Questions,
		m.Reflections,
		m.Topics,
	)
	return m
}

// Registry returns the registry the collectors are registered in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) JourneyStarted() {
	if m != nil {
		m.JourneysStarted.Inc()
	}
}

// NodeCreated counts a node; kind is "exploration" or "manual"
func (m *Metrics) NodeCreated(kind string) {
	if m != nil {
		m.NodesCreated.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) NodeRevealed() {
	if m != nil {
		m.NodesRevealed.Inc()
	}
}

// QuestionAnswered counts a question; failed is set when the answer service failed
func (m *Metrics) QuestionAnswered(failed bool) {
	if m == nil {
		return
	}
	outcome := "answered"
	if failed {
		outcome = "failed"
	}
	m.Questions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reflection(kind string) {
	if m != nil {
		m.Reflections.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) TopicProposed(verdict string) {
	if m != nil {
		m.Topics.WithLabelValues(verdict).Inc()
	}
}
