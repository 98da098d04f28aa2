package archiveserver

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Routing namespaces of the two schema generations.
const (
	RoutingNS10 = "http://geofon.gfz-potsdam.de/ns/Routing/1.0/"
	RoutingNS01 = "http://geofon.gfz-potsdam.de/ns/routing/0.1/"
)

// Volume is one volume element of a status document.
type Volume struct {
	ID        string
	DCID      string
	Status    string
	Encrypted bool
	Lines     []Line
}

// Line is one line element of a volume.
type Line struct {
	Content string
	Status  string
	Message string
}

// StatusDocument renders a status document for request id.
func StatusDocument(id int, ready bool, volumes ...Volume) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0"?><arclink><request id="%d" type="WAVEFORM" ready="%t" status="OK">`, id, ready)
	for _, v := range volumes {
		fmt.Fprintf(&sb, `<volume id=%s dcid=%s status=%s encrypted="%t">`,
			attr(v.ID), attr(v.DCID), attr(v.Status), v.Encrypted)
		for _, l := range v.Lines {
			fmt.Fprintf(&sb, `<line content=%s status=%s message=%s/>`,
				attr(l.Content), attr(l.Status), attr(l.Message))
		}
		sb.WriteString(`</volume>`)
	}
	sb.WriteString(`</request></arclink>`)
	return sb.String()
}

// PendingDocument is a not-ready document without lines.
func PendingDocument(id int) string {
	return StatusDocument(id, false, Volume{ID: "GFZ", DCID: "GFZ", Status: "PROCESSING"})
}

// ReadyDocument is a ready document with one content line.
func ReadyDocument(id int) string {
	return StatusDocument(id, true, Volume{
		ID:     "GFZ",
		DCID:   "GFZ",
		Status: "OK",
		Lines:  []Line{{Content: "2010,1,1,0,0,0 2010,1,1,0,1,0 GE APE BHZ", Status: "OK"}},
	})
}

// FailedDocument is a ready document whose line ended with status.
func FailedDocument(id int, status, message string) string {
	return StatusDocument(id, true, Volume{
		ID:     "GFZ",
		DCID:   "GFZ",
		Status: "OK",
		Lines:  []Line{{Content: "2010,1,1,0,0,0 2010,1,1,0,1,0 GE APE BHZ", Status: status, Message: message}},
	})
}

// EncryptedDocument is a ready document for an encrypted volume of dcid.
func EncryptedDocument(id int, dcid string) string {
	return StatusDocument(id, true, Volume{
		ID:        dcid,
		DCID:      dcid,
		Status:    "OK",
		Encrypted: true,
		Lines:     []Line{{Content: "2010,1,1,0,0,0 2010,1,1,0,1,0 GE APE BHZ", Status: "OK"}},
	})
}

// Route is one route element. Location and Stream are ignored by the 0.1
// schema.
type Route struct {
	Network  string
	Station  string
	Location string
	Stream   string
	Nodes    []Node
}

// Node is one arclink element of a route.
type Node struct {
	Address  string
	Priority int // 0 omits the attribute
	Start    string
	End      string
}

// RoutingDocument renders routes in the given namespace.
func RoutingDocument(namespace string, routes ...Route) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="utf-8"?><ns0:routing xmlns:ns0=%s>`, attr(namespace))
	for _, r := range routes {
		if namespace == RoutingNS01 {
			fmt.Fprintf(&sb, `<ns0:route net_code=%s sta_code=%s>`, attr(r.Network), attr(r.Station))
		} else {
			fmt.Fprintf(&sb, `<ns0:route networkCode=%s stationCode=%s locationCode=%s streamCode=%s>`,
				attr(r.Network), attr(r.Station), attr(r.Location), attr(r.Stream))
		}
		for _, n := range r.Nodes {
			sb.WriteString(`<ns0:arclink address=` + attr(n.Address))
			if n.Priority != 0 {
				sb.WriteString(` priority=` + attr(strconv.Itoa(n.Priority)))
			}
			start := n.Start
			if start == "" {
				start = "1980-01-01T00:00:00.0000Z"
			}
			sb.WriteString(` start=` + attr(start))
			if n.End != "" {
				sb.WriteString(` end=` + attr(n.End))
			}
			sb.WriteString(`/>`)
		}
		sb.WriteString(`</ns0:route>`)
	}
	sb.WriteString(`</ns0:routing>`)
	return sb.String()
}

// attr quotes and escapes an attribute value.
func attr(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return `"` + sb.String() + `"`
}
