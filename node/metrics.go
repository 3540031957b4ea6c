package node

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensornet/metric"
)

const metricsComponent = "node"

// Metrics holds Prometheus metrics for the node runtime
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   prometheus.Histogram
	heartbeatsSent    prometheus.Counter
	lookupRetries     prometheus.Counter
	framesPublished   prometheus.Counter
	framesReceived    prometheus.Counter
	frameDecodeErrors prometheus.Counter
}

// newMetrics creates and registers node runtime metrics.
// Returns nil if no registry is provided (nil input = nil feature).
func newMetrics(registry *metric.Registry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "node",
			Name:      "requests_total",
			Help:      "Registry requests issued, by action and reply status",
		}, []string{"action", "status"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensornet",
			Subsystem: "node",
			Name:      "request_duration_seconds",
			Help:      "Round-trip time of registry requests",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		heartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "node",
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeats successfully delivered to the registry",
		}),
		lookupRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "node",
			Name:      "lookup_retries_total",
			Help:      "Subscriber resolution attempts that found no endpoint",
		}),
		framesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "node",
			Name:      "frames_published_total",
			Help:      "Frames published on data channels",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "node",
			Name:      "frames_received_total",
			Help:      "Frames received on data channels",
		}),
		frameDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensornet",
			Subsystem: "node",
			Name:      "frame_decode_errors_total",
			Help:      "Messages on data channels that were not valid frame envelopes",
		}),
	}

	if err := registry.RegisterCounterVec(metricsComponent, "requests_total", m.requestsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(metricsComponent, "request_duration_seconds", m.requestDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsComponent, "heartbeats_sent_total", m.heartbeatsSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsComponent, "lookup_retries_total", m.lookupRetries); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsComponent, "frames_published_total", m.framesPublished); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsComponent, "frames_received_total", m.framesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(metricsComponent, "frame_decode_errors_total", m.frameDecodeErrors); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) observeRequest(action, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(action, status).Inc()
	m.requestDuration.Observe(seconds)
}

func (m *Metrics) observeHeartbeat() {
	if m == nil {
		return
	}
	m.heartbeatsSent.Inc()
}

func (m *Metrics) observeLookupRetry() {
	if m == nil {
		return
	}
	m.lookupRetries.Inc()
}

func (m *Metrics) observeFramePublished() {
	if m == nil {
		return
	}
	m.framesPublished.Inc()
}

func (m *Metrics) observeFrameReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

func (m *Metrics) observeFrameDecodeError() {
	if m == nil {
		return
	}
	m.frameDecodeErrors.Inc()
}
