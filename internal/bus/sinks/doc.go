// Package sinks implements concrete lifecycle-event consumers: Prometheus
// collectors, structured logging, and Postgres persistence. Each sink
// satisfies the bus.Sink interface and is safe for repeated Consume/Close
// cycles.
package sinks
