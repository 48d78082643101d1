package gantry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "gantry"

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// PrometheusSink records request counters by (operation, status class) and
// a latency histogram by operation. Registration happens once at
// construction; Observe never blocks.
type PrometheusSink struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewPrometheusSink registers the sink's collectors with reg and returns
// the sink. Pass prometheus.DefaultRegisterer for the default registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "requests_total",
			Help:      "Requests processed, by operation and status class.",
		}, []string{"operation", "status_class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "request_duration_seconds",
			Help:      "Wall time from pipeline entry to telemetry emission.",
			Buckets:   latencyBuckets,
		}, []string{"operation"}),
	}
	if err := reg.Register(s.requests); err != nil {
		return nil, err
	}
	if err := reg.Register(s.latency); err != nil {
		return nil, err
	}
	return s, nil
}

// Observe implements Sink.
func (s *PrometheusSink) Observe(sample Sample) {
	s.requests.WithLabelValues(sample.Operation, statusClass(sample.Status)).Inc()
	s.latency.WithLabelValues(sample.Operation).Observe(sample.Latency.Seconds())
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
