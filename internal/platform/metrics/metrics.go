package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for ingestion requests.
const (
	OutcomeCommitted = "committed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Metrics holds the Prometheus metrics for ingestion and aggregation.
// All methods are safe on a nil receiver.
type Metrics struct {
	IngestRequests *prometheus.CounterVec
	IngestDuration *prometheus.HistogramVec
	SalesRecorded  prometheus.Counter
	SaleVolume     prometheus.Counter
	FeesEarned     prometheus.Counter
	ScansRecorded  prometheus.Counter
	CacheLookups   *prometheus.CounterVec
	ViewDuration   *prometheus.HistogramVec
	RateLimited    prometheus.Counter
}

// New creates and registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexushq_ingest_requests_total",
			Help: "Phone-home requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		IngestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexushq_ingest_duration_seconds",
			Help:    "Time from authentication to ledger commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),
		SalesRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "nexushq_sales_recorded_total",
			Help: "Sales committed to the ledger (replays excluded)",
		}),
		SaleVolume: f.NewCounter(prometheus.CounterOpts{
			Name: "nexushq_sale_volume_total",
			Help: "Sum of committed sale values",
		}),
		FeesEarned: f.NewCounter(prometheus.CounterOpts{
			Name: "nexushq_fees_earned_total",
			Help: "Sum of committed network fees",
		}),
		ScansRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "nexushq_scans_recorded_total",
			Help: "Scans committed to the ledger",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nexushq_aggregator_cache_lookups_total",
			Help: "Aggregator view cache lookups by view and result",
		}, []string{"view", "result"}),
		ViewDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexushq_aggregator_view_duration_seconds",
			Help:    "Time to compute an aggregator view",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "nexushq_rate_limited_total",
			Help: "Phone-home requests rejected by the per-key rate limit",
		}),
	}
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveIngest(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.IngestRequests.WithLabelValues(kind, outcome).Inc()
	m.IngestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordSale counts a newly committed sale. Replays must not be passed here.
func (m *Metrics) RecordSale(value, fee float64) {
	if m == nil {
		return
	}
	m.SalesRecorded.Inc()
	m.SaleVolume.Add(value)
	m.FeesEarned.Add(fee)
}

func (m *Metrics) RecordScans(n int) {
	if m == nil {
		return
	}
	m.ScansRecorded.Add(float64(n))
}

func (m *Metrics) CacheLookup(view, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(view, result).Inc()
}

func (m *Metrics) ObserveView(view string, d time.Duration) {
	if m == nil {
		return
	}
	m.ViewDuration.WithLabelValues(view).Observe(d.Seconds())
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
