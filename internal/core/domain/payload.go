// Package domain defines the core domain models for arclink-go.
package domain

import (
	"bytes"
	"compress/bzip2"
	"io"
)

// OpenSSLSaltedPrefix starts every payload still encrypted with a DCID key.
const OpenSSLSaltedPrefix = "Salted__"

// Payload is the downloaded result of one request.
type Payload struct {
	Data []byte

	// Encrypted is true when the status document marked the volume
	// encrypted. It stays true after successful decryption; use
	// StillEncrypted to inspect the bytes.
	Encrypted bool
	// Compressed is true when the request asked for bzip2 compression.
	Compressed bool
	// DCID is the archive id named by the status document.
	DCID string

	// Stalled is set when polling gave up on an unchanging status document.
	Stalled bool
	// PollRounds counts STATUS commands issued.
	PollRounds int

	// Warnings holds non-fatal problems such as ErrDecryptionUnavailable.
	Warnings []error
}

// StillEncrypted reports whether the bytes carry the OpenSSL salted header.
func (p *Payload) StillEncrypted() bool {
	return bytes.HasPrefix(p.Data, []byte(OpenSSLSaltedPrefix))
}

// Unpack returns the bzip2-inflated bytes of a compressed payload.
// Encrypted or uncompressed payloads are returned unchanged.
func (p *Payload) Unpack() ([]byte, error) {
	if !p.Compressed || p.StillEncrypted() {
		return p.Data, nil
	}
	out, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(p.Data)))
	if err != nil {
		return nil, ErrInvalidArgument.WithDetails("bzip2 payload").WithCause(err)
	}
	return out, nil
}
