// Package domain defines the core domain models for arclink-go.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a protocol or archive error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "AL-PROT-5020")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Transport and protocol errors
// ============================================================================

var (
	// ErrConnect indicates the archive node could not be reached.
	ErrConnect = NewDomainError("AL-TRAN-5030", "cannot connect to archive node")

	// ErrTransportTimeout indicates an expected sentinel did not arrive in time.
	ErrTransportTimeout = NewDomainError("AL-TRAN-5040", "timeout waiting for server response")

	// ErrProtocol indicates the server answered with an unexpected line.
	ErrProtocol = NewDomainError("AL-PROT-5020", "protocol violation")

	// ErrFraming indicates the download frame (length, body, trailer) is corrupt.
	ErrFraming = NewDomainError("AL-PROT-5021", "download framing error")
)

// ============================================================================
// Request lifecycle errors
// ============================================================================

var (
	// ErrSubmission indicates the server refused to assign a request id.
	ErrSubmission = NewDomainError("AL-REQ-4000", "request submission failed")

	// ErrRequestStatus indicates the request ended with a terminal status code.
	ErrRequestStatus = NewDomainError("AL-REQ-4010", "request failed")

	// ErrNoData indicates the archive holds no data for the request.
	ErrNoData = NewDomainError("AL-REQ-4040", "no data available")

	// ErrEmptyResult indicates the final status document carries no content.
	ErrEmptyResult = NewDomainError("AL-REQ-4041", "no content")
)

// ============================================================================
// Routing errors
// ============================================================================

var (
	// ErrRouting indicates no route exists for the requested stream.
	ErrRouting = NewDomainError("AL-ROUT-4040", "could not find route")

	// ErrRoutingSchema indicates the routing document uses an unknown namespace.
	ErrRoutingSchema = NewDomainError("AL-ROUT-4220", "unknown routing namespace")
)

// ============================================================================
// Decryption errors
// ============================================================================

var (
	// ErrDecryption indicates the payload could not be decrypted.
	ErrDecryption = NewDomainError("AL-CRYP-4220", "payload decryption failed")

	// ErrDecryptionUnavailable is a warning: no key is known for the archive.
	ErrDecryptionUnavailable = NewDomainError("AL-CRYP-4040", "could not decrypt waveform data")
)

// ============================================================================
// Argument errors
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("AL-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("AL-ARG-1002", "missing required argument")
)

// TransportTimeout reports the sentinel that never arrived together with
// whatever text was read before the deadline.
type TransportTimeout struct {
	Sentinel string
	Partial  string
	Cause    error
}

// Error implements the error interface.
func (e *TransportTimeout) Error() string {
	return fmt.Sprintf("%s: expected %q, got %q", ErrTransportTimeout.Error(), e.Sentinel, e.Partial)
}

// Unwrap lets errors.Is match both ErrTransportTimeout and the I/O cause.
func (e *TransportTimeout) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransportTimeout}
	}
	return []error{ErrTransportTimeout, e.Cause}
}

// StatusError carries a terminal request status reported by the archive.
type StatusError struct {
	Status  StatusCode
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", ErrRequestStatus.Error(), e.Status)
	}
	return fmt.Sprintf("%s: %s %s", ErrRequestStatus.Error(), e.Status, e.Message)
}

// Unwrap returns ErrRequestStatus.
func (e *StatusError) Unwrap() error {
	return ErrRequestStatus
}
