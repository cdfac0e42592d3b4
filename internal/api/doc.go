// Package api hosts the ops HTTP listener that runs next to the workers:
//   - GET /healthz for liveness.
//   - GET /readyz, which pings the relational store.
//   - GET /metrics for Prometheus scraping.
//   - GET /status with the queue counts per status.
package api
