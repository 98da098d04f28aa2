// Package metric provides Prometheus metrics for arclink-go.
//
// Metrics include:
//
//   - Request outcomes per verb
//   - Poll rounds per request and stalled polls
//   - Downloaded payload bytes
//   - Handshakes per endpoint result and routing origin fallbacks
//
// The CLI is a short-lived process, so metrics are written to a
// node_exporter textfile instead of being served over HTTP.
package metric
