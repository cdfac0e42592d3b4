// Package sinks implements concrete status event consumers: structured logs,
// Prometheus collectors and a topic publisher. Each sink satisfies the
// progress.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
