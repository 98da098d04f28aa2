// Package archiveserver provides a scripted ArcLink archive node.
//
// The server speaks the line protocol of a real node (HELLO, USER,
// INSTITUTION, REQUEST ... END, STATUS, DOWNLOAD, PURGE, BYE) but answers
// from a Responder instead of an archive. Every received line is kept in
// a journal so tests can assert on PURGE and BYE.
//
// Supported answers:
//   - status documents replayed in order, the last one repeated
//   - framed downloads with optional length, trailer and truncation faults
//   - submission rejection (ERROR instead of a request id)
//   - routing documents in both namespace generations (see xml.go)
package archiveserver
