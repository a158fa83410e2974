// Package telemetry exposes a running stress client over HTTP.
//
// It is optional: the client only starts it when --metrics-addr is set.
//
// # Endpoints
//
//   - /metrics: Prometheus metrics of this client (own registry, client_id label)
//   - /health: liveness
//   - /api/status: current lifecycle state, key set size and stats window as JSON
//   - /ws: websocket stream of runner events (state changes, flushed windows, backoffs)
//
// All Metrics methods are safe on a nil receiver so the runner can record
// unconditionally.
package telemetry
