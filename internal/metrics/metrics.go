// Package metrics counts provider calls for a single process run. The CLI has
// no scrape endpoint, so the registry is flushed to a node_exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/manash/nogologo/pkg/models"
)

const namespace = "nogologo"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type Metrics struct {
	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec
	ImagesReturned  *prometheus.CounterVec
	RefineFallbacks prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Provider generation calls, partitioned by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Provider generation call time in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
			},
			[]string{"provider"},
		),
		ImagesReturned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_returned_total",
				Help:      "Images returned by providers",
			},
			[]string{"provider"},
		),
		RefineFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refine_fallbacks_total",
			Help:      "Prompt refinements that fell back to a canned style suffix",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.ProviderCalls, m.ProviderLatency, m.ImagesReturned, m.RefineFallbacks)
	return m
}

// ObserveResult records one finished provider call. A nil receiver is a no-op.
func (m *Metrics) ObserveResult(r models.Result) {
	if m == nil {
		return
	}
	provider := r.Provider.String()
	outcome := OutcomeSuccess
	if r.Err != nil {
		outcome = OutcomeError
	}
	m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(r.Duration.Seconds())
	m.ImagesReturned.WithLabelValues(provider).Add(float64(len(r.Images)))
}

func (m *Metrics) ObserveRefineFallback() {
	if m == nil {
		return
	}
	m.RefineFallbacks.Inc()
}

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
