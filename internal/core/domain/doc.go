// Package domain defines the core domain models for arclink-go.
//
// Domain models are pure value objects without network IO. This package
// contains:
//
//   - Endpoint, Credentials: who talks to which archive node
//   - RequestDescriptor: verb, time window and stream selector of a request
//   - RoutingTable, RouteEntry: routing answers and selector matching
//   - StatusDocument: STATUS answers and their classification
//   - Payload: downloaded bytes and their flags
//   - Errors: the error taxonomy shared by all layers
package domain
