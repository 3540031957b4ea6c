// Package metric manages Prometheus metrics registration for sensornet
// processes. Each process owns one Registry; components register their
// collectors under a component name so duplicate registrations are caught
// at startup rather than at scrape time.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/sensornet/errors"
)

// Registrar defines the interface for registering component metrics
type Registrar interface {
	RegisterCounter(component, name string, counter prometheus.Counter) error
	RegisterGauge(component, name string, gauge prometheus.Gauge) error
	RegisterHistogram(component, name string, histogram prometheus.Histogram) error
	RegisterCounterVec(component, name string, counterVec *prometheus.CounterVec) error
	Unregister(component, name string) bool
}

// Registry manages the registration and lifecycle of metrics
type Registry struct {
	prometheusRegistry *prometheus.Registry
	registered         map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a new metrics registry with Go runtime and process collectors
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		registered:         make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry for scraping
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

func (r *Registry) register(component, name string, c prometheus.Collector, op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", name, component),
			"Registry", op, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", op,
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "Registry", op, "register collector with prometheus")
	}

	r.registered[key] = c
	return nil
}

// RegisterCounter registers a counter metric for a component
func (r *Registry) RegisterCounter(component, name string, counter prometheus.Counter) error {
	return r.register(component, name, counter, "RegisterCounter")
}

// RegisterGauge registers a gauge metric for a component
func (r *Registry) RegisterGauge(component, name string, gauge prometheus.Gauge) error {
	return r.register(component, name, gauge, "RegisterGauge")
}

// RegisterHistogram registers a histogram metric for a component
func (r *Registry) RegisterHistogram(component, name string, histogram prometheus.Histogram) error {
	return r.register(component, name, histogram, "RegisterHistogram")
}

// RegisterCounterVec registers a labeled counter metric for a component
func (r *Registry) RegisterCounterVec(component, name string, counterVec *prometheus.CounterVec) error {
	return r.register(component, name, counterVec, "RegisterCounterVec")
}

// Unregister removes a component metric, returning true if it was registered
func (r *Registry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, name)
	c, exists := r.registered[key]
	if !exists {
		return false
	}
	delete(r.registered, key)
	return r.prometheusRegistry.Unregister(c)
}

var _ Registrar = (*Registry)(nil)
