// Package service drives ArcLink requests over a connection.Session.
//
// This package contains:
//
//   - Executor: one submit, poll, classify, download and release cycle
//   - RoutingResolver: ROUTING queries decoded into a domain.RoutingTable
//   - Dispatcher: routed dispatch with a single origin fallback
//   - Client: verb-specific entry points (waveform, inventory, QC, ...)
//
// A Client owns exactly one Session and is not safe for concurrent use;
// concurrent requests need separate clients. The KeyStore and Decryptor
// passed in may be shared.
package service
