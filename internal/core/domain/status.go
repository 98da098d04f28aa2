// Package domain defines the core domain models for arclink-go.
package domain

import (
	"encoding/xml"
	"strings"
)

// StatusCode is the status attribute carried by request, volume and line
// elements of a status document.
type StatusCode string

// Status codes reported by archive nodes.
const (
	CodeUnset      StatusCode = "UNSET"
	CodeProcessing StatusCode = "PROCESSING"
	CodeOK         StatusCode = "OK"
	CodeWarn       StatusCode = "WARN"
	CodeError      StatusCode = "ERROR"
	CodeRetry      StatusCode = "RETRY"
	CodeDenied     StatusCode = "DENIED"
	CodeNoData     StatusCode = "NODATA"
	CodeCancel     StatusCode = "CANCEL"
	CodeCancelled  StatusCode = "CANCELLED"
)

// TerminalStatuses are checked in this order; the first one present in a
// document decides the failure.
var TerminalStatuses = []StatusCode{
	CodeDenied,
	CodeCancelled,
	CodeCancel,
	CodeError,
	CodeRetry,
	CodeWarn,
	CodeUnset,
}

type statusLine struct {
	Content *string `xml:"content,attr"`
	Status  string  `xml:"status,attr"`
	Message string  `xml:"message,attr"`
}

type statusVolume struct {
	ID        string       `xml:"id,attr"`
	DCID      string       `xml:"dcid,attr"`
	Status    string       `xml:"status,attr"`
	Encrypted string       `xml:"encrypted,attr"`
	Message   string       `xml:"message,attr"`
	Lines     []statusLine `xml:"line"`
}

type statusRequest struct {
	ID        string         `xml:"id,attr"`
	Type      string         `xml:"type,attr"`
	Ready     string         `xml:"ready,attr"`
	Status    string         `xml:"status,attr"`
	Encrypted string         `xml:"encrypted,attr"`
	Message   string         `xml:"message,attr"`
	Volumes   []statusVolume `xml:"volume"`
}

type statusXML struct {
	XMLName  xml.Name        `xml:"arclink"`
	Requests []statusRequest `xml:"request"`
}

// StatusDocument is one answer to a STATUS command.
type StatusDocument struct {
	// Raw is the document text without the END sentinel. Polls compare
	// documents by Raw to detect a stalled request.
	Raw string

	doc statusXML
}

// ParseStatusDocument decodes a status document. The trailing END
// sentinel, if still present, is removed first.
func ParseStatusDocument(raw string) (*StatusDocument, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "END"))

	d := &StatusDocument{Raw: raw}
	if err := xml.Unmarshal([]byte(raw), &d.doc); err != nil {
		return nil, ErrProtocol.WithDetails("malformed status document").WithCause(err)
	}
	return d, nil
}

// Equal reports whether two documents are byte-identical.
func (d *StatusDocument) Equal(other *StatusDocument) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Raw == other.Raw
}

// Ready reports whether the archive marked the request ready.
func (d *StatusDocument) Ready() bool {
	for _, r := range d.doc.Requests {
		if r.Ready == "true" {
			return true
		}
	}
	return false
}

// Encrypted reports whether the payload is marked encrypted.
func (d *StatusDocument) Encrypted() bool {
	for _, r := range d.doc.Requests {
		if r.Encrypted == "true" {
			return true
		}
		for _, v := range r.Volumes {
			if v.Encrypted == "true" {
				return true
			}
		}
	}
	return false
}

// DCID returns the archive id of the first volume that names one.
func (d *StatusDocument) DCID() string {
	for _, r := range d.doc.Requests {
		for _, v := range r.Volumes {
			if v.DCID != "" {
				return v.DCID
			}
		}
	}
	return ""
}

// HasContent reports whether any volume lists a content line.
func (d *StatusDocument) HasContent() bool {
	for _, r := range d.doc.Requests {
		for _, v := range r.Volumes {
			for _, l := range v.Lines {
				if l.Content != nil {
					return true
				}
			}
		}
	}
	return false
}

// Classify turns a final status document into an error, or nil when the
// result can be downloaded.
func (d *StatusDocument) Classify() error {
	for _, code := range TerminalStatuses {
		if msg, ok := d.findStatus(code); ok {
			return &StatusError{Status: code, Message: msg}
		}
	}

	if msg, ok := d.findStatus(CodeNoData); ok {
		return ErrNoData.WithDetails(msg)
	}

	for _, r := range d.doc.Requests {
		for _, v := range r.Volumes {
			switch v.ID {
			case string(CodeNoData):
				return ErrNoData.WithDetails(volumeMessage(v))
			case string(CodeError):
				return &StatusError{Status: CodeError, Message: volumeMessage(v)}
			}
		}
	}

	if !d.Ready() || !d.HasContent() {
		return ErrEmptyResult
	}
	return nil
}

// findStatus looks for code on any element. The message comes from the
// element carrying the code, falling back to the first diagnostic line.
func (d *StatusDocument) findStatus(code StatusCode) (string, bool) {
	want := string(code)
	for _, r := range d.doc.Requests {
		if r.Status == want {
			return firstNonEmpty(r.Message, d.diagnostic()), true
		}
		for _, v := range r.Volumes {
			if v.Status == want {
				return firstNonEmpty(v.Message, volumeMessage(v)), true
			}
			for _, l := range v.Lines {
				if l.Status == want {
					return firstNonEmpty(l.Message, d.diagnostic()), true
				}
			}
		}
	}
	return "", false
}

func (d *StatusDocument) diagnostic() string {
	for _, r := range d.doc.Requests {
		for _, v := range r.Volumes {
			if msg := volumeMessage(v); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func volumeMessage(v statusVolume) string {
	for _, l := range v.Lines {
		if l.Message != "" {
			return l.Message
		}
	}
	return v.Message
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
