// Package progress carries the per-URL status events workers emit while an
// entry moves through the pipeline. A Hub batches events on a background
// goroutine and fans them out to sinks such as structured logs, Prometheus
// collectors or a Pub/Sub topic without ever blocking the worker.
package progress
