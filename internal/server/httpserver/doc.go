// Package httpserver provides the optional status listener of a mesh node.
//
// Routes:
//
//   - GET /metrics: Prometheus exposition of the node's registry
//   - GET /health: daemon reachability on the bus
//   - GET /state: attachment state of the node
//
// The listener is disabled unless metrics.addr is configured.
package httpserver
