// Package domain defines the core domain models for arclink-go.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Verb names the kind of data requested from the archive.
type Verb string

// Supported request verbs.
const (
	VerbWaveform  Verb = "WAVEFORM"
	VerbResponse  Verb = "RESPONSE"
	VerbInventory Verb = "INVENTORY"
	VerbRouting   Verb = "ROUTING"
	VerbQC        Verb = "QC"
)

// WindowPadding is added on both sides of the requested window before it
// goes on the wire, so that records straddling the edges are included.
const WindowPadding = time.Second

// Selector identifies a stream. Parts may contain glob wildcards; an empty
// part or "*" is unrestricted.
type Selector struct {
	Network  string `json:"network" yaml:"network"`
	Station  string `json:"station" yaml:"station"`
	Location string `json:"location" yaml:"location"`
	Channel  string `json:"channel" yaml:"channel"`
}

// String returns the NET.STA.LOC.CHA form.
func (s Selector) String() string {
	return strings.Join([]string{s.Network, s.Station, s.Location, s.Channel}, ".")
}

// Window is a closed time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Widen returns the window grown by d on each side.
func (w Window) Widen(d time.Duration) Window {
	return Window{Start: w.Start.Add(-d), End: w.End.Add(d)}
}

// RequestDescriptor describes one archive request. It is built once and
// not modified afterwards; the constructor copies all slices.
type RequestDescriptor struct {
	Verb     Verb
	Window   Window
	Selector Selector

	// Params are key=value tokens appended to the REQUEST line.
	Params []string

	// Extra are tokens appended to the data line after the selector.
	Extra []string
}

// NewRequestDescriptor builds a descriptor.
func NewRequestDescriptor(verb Verb, window Window, sel Selector, params, extra []string) RequestDescriptor {
	return RequestDescriptor{
		Verb:     verb,
		Window:   window,
		Selector: sel,
		Params:   append([]string(nil), params...),
		Extra:    append([]string(nil), extra...),
	}
}

// Validate checks the descriptor before anything is sent.
func (d RequestDescriptor) Validate() error {
	switch d.Verb {
	case VerbWaveform, VerbResponse, VerbInventory, VerbRouting, VerbQC:
	case "":
		return ErrMissingArgument.WithDetails("verb")
	default:
		return ErrInvalidArgument.WithDetails("unknown verb " + string(d.Verb))
	}
	if d.Selector.Network == "" {
		return ErrMissingArgument.WithDetails("network")
	}
	if d.Window.Start.IsZero() || d.Window.End.IsZero() {
		return ErrMissingArgument.WithDetails("time window")
	}
	if d.Window.End.Before(d.Window.Start) {
		return ErrInvalidArgument.WithDetails("end time before start time")
	}
	return nil
}

// RequestLine renders "REQUEST <VERB> <params...>".
func (d RequestDescriptor) RequestLine() string {
	parts := make([]string, 0, len(d.Params)+2)
	parts = append(parts, "REQUEST", string(d.Verb))
	parts = append(parts, d.Params...)
	return strings.Join(parts, " ")
}

// DataLine renders the widened window followed by the selector and any
// extra tokens. Routing requests only carry network and station; all
// other verbs send channel before location.
func (d RequestDescriptor) DataLine() string {
	w := d.Window.Widen(WindowPadding)
	parts := []string{FormatTime(w.Start), FormatTime(w.End), d.Selector.Network, d.Selector.Station}
	if d.Verb != VerbRouting {
		parts = append(parts, d.Selector.Channel, d.Selector.Location)
	}
	parts = append(parts, d.Extra...)
	return strings.Join(parts, " ")
}

// String is used in log lines.
func (d RequestDescriptor) String() string {
	return fmt.Sprintf("%s %s %s..%s", d.Verb, d.Selector, FormatTime(d.Window.Start), FormatTime(d.Window.End))
}

// FormatTime renders t in the comma separated wire format
// "Y,M,D,h,m,s" with a trailing microsecond field when non-zero.
func FormatTime(t time.Time) string {
	t = t.UTC()
	s := fmt.Sprintf("%d,%d,%d,%d,%d,%d", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(",%d", us)
	}
	return s
}
