package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cosmetics"

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	Checkouts     *prometheus.CounterVec
	Reservations  *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reservations_total",
			Help:      "Stock reservations by result.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification dispatches by channel and result.",
		}, []string{"channel", "result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Checkouts, m.Reservations, m.Notifications, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) Checkout(result string) {
	if m != nil {
		m.Checkouts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Reservation(result string) {
	if m != nil {
		m.Reservations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Notification(channel, result string) {
	if m != nil {
		m.Notifications.WithLabelValues(channel, result).Inc()
	}
}

func (m *Metrics) Request(route, status string, ms float64) {
	if m != nil {
		m.Requests.WithLabelValues(route, status).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(ms)
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
