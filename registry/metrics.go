package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensornet/metric"
)

const metricsComponent = "registry_server"

// Metrics holds Prometheus metrics for the registry server
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	heartbeatsTotal  prometheus.Counter
	registeredTopics prometheus.Gauge
	kvKeys           prometheus.Gauge
	handleDuration   prometheus.Histogram
}

// newMetrics creates and registers registry server metrics.
// Returns nil if no registry is provided (nil input = nil feature).
func newMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "registry",
			Name:      "requests_total",
			Help:      "Registry requests handled, by action and reply status",
		}, []string{"action", "status"}),
		heartbeatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "registry",
			Name:      "heartbeats_received_total",
			Help:      "Heartbeat requests received from nodes",
		}),
		registeredTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensornet",
			Subsystem: "registry",
			Name:      "registered_topics",
			Help:      "Topics currently registered",
		}),
		kvKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensornet",
			Subsystem: "registry",
			Name:      "kv_keys",
			Help:      "Keys currently stored in the key/value store",
		}),
		handleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensornet",
			Subsystem: "registry",
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling a single request",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	if err := registry.RegisterCounterVec(metricsComponent, "requests_total", m.requestsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsComponent, "heartbeats_received_total", m.heartbeatsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(metricsComponent, "registered_topics", m.registeredTopics); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(metricsComponent, "kv_keys", m.kvKeys); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(metricsComponent, "handle_duration_seconds", m.handleDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) observeRequest(action, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(action, status).Inc()
	m.handleDuration.Observe(seconds)
}

func (m *Metrics) observeHeartbeat() {
	if m == nil {
		return
	}
	m.heartbeatsTotal.Inc()
}

func (m *Metrics) setStoreSizes(topics, keys int) {
	if m == nil {
		return
	}
	m.registeredTopics.Set(float64(topics))
	m.kvKeys.Set(float64(keys))
}
