package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Register records the transaction flow of one register. A nil *Register
// is valid and records nothing.
type Register struct {
	scans        *prometheus.CounterVec
	weighing     *prometheus.CounterVec
	checkouts    *prometheus.CounterVec
	saleTotal    prometheus.Histogram
	sinkFailures *prometheus.CounterVec
	requests     *prometheus.HistogramVec
}

// NewRegister registers the register metrics on the provided registerer.
func NewRegister(reg prometheus.Registerer) *Register {
	if reg == nil {
		return nil
	}
	m := &Register{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "register_scans_total",
			Help: "Barcode scans by outcome.",
		}, []string{"result"}),
		weighing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "register_weighing_events_total",
			Help: "Weighing session events by kind.",
		}, []string{"event"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "register_checkouts_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"result"}),
		saleTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "register_sale_total",
			Help:    "Total of completed sales in currency units.",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
		}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "register_receipt_sink_failures_total",
			Help: "Receipts a sink failed to accept.",
		}, []string{"sink"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "register_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.scans, m.weighing, m.checkouts, m.saleTotal, m.sinkFailures, m.requests)
	return m
}

func (m *Register) Scan(result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Register) Weighing(event string) {
	if m == nil {
		return
	}
	m.weighing.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *Register) Checkout(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

// Sale observes a completed sale; total is in cents.
func (m *Register) Sale(totalCents int64) {
	if m == nil {
		return
	}
	m.saleTotal.Observe(float64(totalCents) / 100)
}

func (m *Register) SinkFailure(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *Register) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, normalizeLabel(route), status).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
