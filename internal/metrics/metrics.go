package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "requests_total",
			Help:      "HTTP requests handled, by route and status",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration, by route",
			Buckets: []float64{
				0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
			},
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration)
}

func IncRequest(route, method, status string) {
	RequestsTotal.WithLabelValues(route, method, status).Inc()
}

func ObserveDuration(route, status string, seconds float64) {
	RequestDuration.WithLabelValues(route, status).Observe(seconds)
}
