package erpnext

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	MetricRequestsTotal   = "bff_erpnext_requests_total"
	MetricRequestDuration = "bff_erpnext_request_duration_seconds"
	MetricRetriesTotal    = "bff_erpnext_retries_total"
)

// Metrics holds the upstream call collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Total number of ERPNext calls by operation, doctype and status",
		}, []string{"method", "doctype", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDuration,
			Help:    "ERPNext call latency in seconds, retries included",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "doctype", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRetriesTotal,
			Help: "Total number of retried ERPNext calls",
		}, []string{"method", "doctype"}),
	}
	for _, col := range []prometheus.Collector{m.requests, m.duration, m.retries} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(op, doctype, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, doctype, status).Inc()
	m.duration.WithLabelValues(op, doctype, status).Observe(d.Seconds())
}

func (m *Metrics) retried(op, doctype string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op, doctype).Inc()
}
