// Package metric provides Prometheus metrics for meshnode.
//
// Metrics include:
//
//   - attach attempts and recovery outcomes
//   - join callbacks, including rejected duplicates
//   - messages sent and received, by opcode
//   - token store writes, by backend
//   - the current node lifecycle state
//
// Metrics are exposed at /metrics in Prometheus format when a metrics
// address is configured. A nil *Registry is valid and records nothing.
package metric
