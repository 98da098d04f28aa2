// Package connection provides the line-oriented connection to an ArcLink
// archive node.
//
// This package has two layers:
//
//   - transport.go: CRLF line reads up to a sentinel, paced writes and the
//     raw reads used by the framed download
//   - session.go: HELLO/USER/INSTITUTION handshake, BYE teardown and
//     retargeting to another node
//
// A Session serves one request cycle at a time and is not safe for
// concurrent use.
package connection
