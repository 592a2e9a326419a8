package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// StateCollector exports one gauge sample per module, valued 1, labeled with
// the module's current lifecycle state. Collection reads live orchestrator
// state instead of tracking transitions.
type StateCollector struct {
	desc   *prometheus.Desc
	states func() map[string]string
}

// NewStateCollector builds a collector around a state snapshot function
// mapping module name to state name.
func NewStateCollector(states func() map[string]string) *StateCollector {
	return &StateCollector{
		desc: prometheus.NewDesc(
			"collector_module_state",
			"Current lifecycle state per module (value is always 1).",
			[]string{"module", "state"},
			nil,
		),
		states: states,
	}
}

// Describe implements prometheus.Collector.
func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	for name, state := range c.states() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, 1, name, state)
	}
}

// RegisterStateCollector registers the collector against the default
// registry. A collector already registered for the same snapshot source is
// not an error.
func RegisterStateCollector(states func() map[string]string) error {
	err := prometheus.Register(NewStateCollector(states))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
