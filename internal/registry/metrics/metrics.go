package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the client registry.
// Tracks registrations, resolution failures and the API key resolution path.
type Metrics struct {
	ClientsRegistered *prometheus.CounterVec
	ResolveFailures   *prometheus.CounterVec
	ResolveDuration   prometheus.Histogram
	StatusChanges     *prometheus.CounterVec
}

// New creates a new Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClientsRegistered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexushq_clients_registered_total",
			Help: "Total number of clients registered, by tier",
		}, []string{"tier"}),
		ResolveFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexushq_resolve_failures_total",
			Help: "API key resolutions that did not yield an active client, by reason",
		}, []string{"reason"}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexushq_resolve_client_duration_seconds",
			Help:    "Duration of API key resolution (phone-home critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexushq_client_status_changes_total",
			Help: "Client lifecycle changes by kind",
		}, []string{"change"}),
	}
}

func (m *Metrics) IncrementRegistered(tier string) {
	m.ClientsRegistered.WithLabelValues(tier).Inc()
}

func (m *Metrics) IncrementResolveFailure(reason string) {
	m.ResolveFailures.WithLabelValues(reason).Inc()
}

// ObserveResolve records the duration of a Resolve call started at start.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementStatusChange(change string) {
	m.StatusChanges.WithLabelValues(change).Inc()
}
