package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openquant/collector/internal/bus"
)

// PrometheusSink exports lifecycle events as Prometheus counters.
type PrometheusSink struct {
	lifecycleEvents *prometheus.CounterVec
	healthResults   *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		lifecycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_module_lifecycle_events_total",
			Help: "Lifecycle events partitioned by module and type.",
		}, []string{"module", "type"}),
		healthResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_module_health_results_total",
			Help: "Health check results partitioned by module and status.",
		}, []string{"module", "status"}),
	}
	for _, collector := range []prometheus.Collector{s.lifecycleEvents, s.healthResults} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register lifecycle collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []bus.Event) error {
	for _, evt := range batch {
		s.lifecycleEvents.WithLabelValues(evt.Module, string(evt.Type)).Inc()
		if evt.Type == bus.TypeHealthCheck {
			s.healthResults.WithLabelValues(evt.Module, evt.Status).Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
