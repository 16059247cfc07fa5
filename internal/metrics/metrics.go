package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vyvoz",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vyvoz",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	brokerPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vyvoz",
			Name:      "broker_messages_total",
			Help:      "Order events sent to the message broker by result.",
		},
		[]string{"event", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, brokerPublished)
	})
}

// ObserveHTTP учитывает запрос к endpoint.
func ObserveHTTP(endpoint string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func IncBroker(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	brokerPublished.WithLabelValues(event, result).Inc()
}
