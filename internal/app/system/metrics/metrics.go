// Package metrics exposes Prometheus counters for the join path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Allocation counts allocation outcomes and optimistic-commit retries.
type Allocation struct {
	outcomes *prometheus.CounterVec
	retries  prometheus.Counter
}

// NewAllocation registers the allocation counters on reg.
func NewAllocation(reg prometheus.Registerer) *Allocation {
	m := &Allocation{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "joinlink",
			Name:      "allocations_total",
			Help:      "Join allocations by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "joinlink",
			Name:      "allocation_retries_total",
			Help:      "Commits that lost a race for a link and rescanned.",
		}),
	}
	reg.MustRegister(m.outcomes, m.retries)
	return m
}

func (m *Allocation) ObserveOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *Allocation) ObserveRetry() {
	m.retries.Inc()
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
