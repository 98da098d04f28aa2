// Package metric provides Prometheus metrics for arclink-go.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/arclink-go/internal/core/domain"
)

const namespace = "arclink"

// Outcome labels used besides domain error codes.
const (
	OutcomeOK      = "ok"
	OutcomeUnknown = "unknown"
)

// Registry holds all client metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	PollRounds       prometheus.Histogram
	StalledPolls     prometheus.Counter
	DownloadBytes    prometheus.Counter
	HandshakesTotal  *prometheus.CounterVec
	RoutingFallbacks prometheus.Counter
}

// NewRegistry creates the client metrics on a fresh prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Archive requests by verb and outcome (ok or error code).",
		}, []string{"verb", "outcome"}),
		PollRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_rounds",
			Help:      "STATUS commands issued per request.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		StalledPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stalled_polls_total",
			Help:      "Requests whose polling stopped on an unchanging status document.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Payload bytes downloaded.",
		}),
		HandshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Session handshakes by result.",
		}, []string{"result"}),
		RoutingFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_origin_fallbacks_total",
			Help:      "Dispatches retried against the originally configured node.",
		}),
	}

	r.registry.MustRegister(
		r.RequestsTotal,
		r.PollRounds,
		r.StalledPolls,
		r.DownloadBytes,
		r.HandshakesTotal,
		r.RoutingFallbacks,
	)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in the node_exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// ObserveRequest records the end of one request cycle.
func (r *Registry) ObserveRequest(verb domain.Verb, err error) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(string(verb), Outcome(err)).Inc()
}

// ObservePolling records how many STATUS rounds a request needed.
func (r *Registry) ObservePolling(rounds int, stalled bool) {
	if r == nil {
		return
	}
	r.PollRounds.Observe(float64(rounds))
	if stalled {
		r.StalledPolls.Inc()
	}
}

// ObserveDownload adds downloaded payload bytes.
func (r *Registry) ObserveDownload(n int) {
	if r == nil {
		return
	}
	r.DownloadBytes.Add(float64(n))
}

// ObserveHandshake records a handshake attempt.
func (r *Registry) ObserveHandshake(err error) {
	if r == nil {
		return
	}
	r.HandshakesTotal.WithLabelValues(Outcome(err)).Inc()
}

// ObserveRoutingFallback records a retry against the origin node.
func (r *Registry) ObserveRoutingFallback() {
	if r == nil {
		return
	}
	r.RoutingFallbacks.Inc()
}

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := domain.GetErrorCode(err); code != "" {
		return code
	}
	return OutcomeUnknown
}
