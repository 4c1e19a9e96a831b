package obs

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMeter implements Meter on a private Prometheus registry. Vectors are
// created on first use; the label keys of that first call fix the label
// set for the metric and later calls with a different set are dropped.
type PromMeter struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPromMeter creates a meter whose metric names are prefixed by namespace.
// If registry is nil a new one is created.
func NewPromMeter(namespace string, registry *prometheus.Registry) *PromMeter {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &PromMeter{
		namespace:  namespace,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry exposes the underlying registry, mostly for tests and for
// registering process collectors.
func (m *PromMeter) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *PromMeter) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PromMeter) Counter(name string, value float64, labels ...Label) {
	keys, vals := splitLabels(labels)
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      name,
		}, keys)
		if err := m.registry.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		m.counters[name] = vec
	}
	m.mu.Unlock()
	c, err := vec.GetMetricWith(vals)
	if err != nil {
		return
	}
	c.Add(value)
}

func (m *PromMeter) Histogram(name string, value float64, labels ...Label) {
	keys, vals := splitLabels(labels)
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      name,
			Help:      name,
			Buckets:   prometheus.DefBuckets,
		}, keys)
		if err := m.registry.Register(vec); err != nil {
			m.mu.Unlock()
			return
		}
		m.histograms[name] = vec
	}
	m.mu.Unlock()
	h, err := vec.GetMetricWith(vals)
	if err != nil {
		return
	}
	h.Observe(value)
}

func splitLabels(labels []Label) ([]string, prometheus.Labels) {
	keys := make([]string, 0, len(labels))
	vals := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		if _, dup := vals[l.Key]; !dup {
			keys = append(keys, l.Key)
		}
		vals[l.Key] = l.Value
	}
	sort.Strings(keys)
	return keys, vals
}
