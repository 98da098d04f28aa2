package service

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
)

// Routing namespaces. The 0.1 generation has no location or stream codes.
const (
	RoutingNS10 = "http://geofon.gfz-potsdam.de/ns/Routing/1.0/"
	RoutingNS01 = "http://geofon.gfz-potsdam.de/ns/routing/0.1/"
)

// RoutingResolver runs ROUTING queries. Queries go straight through the
// Executor, so resolving a route never triggers another routing lookup.
type RoutingResolver struct {
	exec *Executor
	log  logger.Logger
}

// NewRoutingResolver creates a resolver on top of exec.
func NewRoutingResolver(exec *Executor) *RoutingResolver {
	return &RoutingResolver{exec: exec, log: exec.log}
}

// Resolve fetches the routing table for network and station. Extra
// params (for example modified_after=...) are appended to the request line.
func (r *RoutingResolver) Resolve(ctx context.Context, network, station string, window domain.Window, params ...string) (domain.RoutingTable, error) {
	desc := domain.NewRequestDescriptor(domain.VerbRouting, window,
		domain.Selector{Network: network, Station: station}, params, nil)

	payload, err := r.exec.Execute(ctx, desc)
	if err != nil {
		return nil, err
	}

	table, err := ParseRoutingDocument(payload.Data)
	if err != nil {
		return nil, err
	}
	r.log.Debug("routing resolved", "network", network, "station", station, "keys", len(table))
	return table, nil
}

// ============================================================================
// Routing document decoding
// ============================================================================

type routeNodeXML struct {
	Address  string `xml:"address,attr"`
	Priority string `xml:"priority,attr"`
	Start    string `xml:"start,attr"`
	End      string `xml:"end,attr"`
}

type routing10XML struct {
	Routes []struct {
		Network  string         `xml:"networkCode,attr"`
		Station  string         `xml:"stationCode,attr"`
		Location string         `xml:"locationCode,attr"`
		Stream   string         `xml:"streamCode,attr"`
		Nodes    []routeNodeXML `xml:"arclink"`
	} `xml:"route"`
}

type routing01XML struct {
	Routes []struct {
		Network string         `xml:"net_code,attr"`
		Station string         `xml:"sta_code,attr"`
		Nodes   []routeNodeXML `xml:"arclink"`
	} `xml:"route"`
}

// ParseRoutingDocument decodes a routing document of either namespace
// generation into a RoutingTable.
func ParseRoutingDocument(data []byte) (domain.RoutingTable, error) {
	ns, err := routingNamespace(data)
	if err != nil {
		return nil, err
	}

	switch ns {
	case RoutingNS10:
		return decodeRouting10(data)
	case RoutingNS01:
		return decodeRouting01(data)
	default:
		return nil, domain.ErrRoutingSchema.WithDetails(ns)
	}
}

// routingNamespace returns the known routing namespace of the root
// element, or its own namespace when none is known.
func routingNamespace(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", domain.ErrProtocol.WithDetails("empty routing document")
		}
		if err != nil {
			return "", domain.ErrProtocol.WithDetails("malformed routing document").WithCause(err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if start.Name.Space == RoutingNS10 || start.Name.Space == RoutingNS01 {
			return start.Name.Space, nil
		}
		for _, a := range start.Attr {
			if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
				if a.Value == RoutingNS10 || a.Value == RoutingNS01 {
					return a.Value, nil
				}
			}
		}
		return start.Name.Space, nil
	}
}

func decodeRouting10(data []byte) (domain.RoutingTable, error) {
	var doc routing10XML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, domain.ErrProtocol.WithDetails("malformed routing document").WithCause(err)
	}

	table := make(domain.RoutingTable, len(doc.Routes))
	for _, r := range doc.Routes {
		entries, err := decodeNodes(r.Nodes)
		if err != nil {
			return nil, err
		}
		table[domain.RouteKey(r.Network, r.Station, r.Location, r.Stream)] = entries
	}
	return table, nil
}

func decodeRouting01(data []byte) (domain.RoutingTable, error) {
	var doc routing01XML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, domain.ErrProtocol.WithDetails("malformed routing document").WithCause(err)
	}

	table := make(domain.RoutingTable, len(doc.Routes))
	for _, r := range doc.Routes {
		entries, err := decodeNodes(r.Nodes)
		if err != nil {
			return nil, err
		}
		table[domain.RouteKey(r.Network, r.Station, "", "")] = entries
	}
	return table, nil
}

// decodeNodes always returns a non-nil slice; an empty one marks the
// responding node as authoritative.
func decodeNodes(nodes []routeNodeXML) ([]domain.RouteEntry, error) {
	entries := make([]domain.RouteEntry, 0, len(nodes))
	for _, n := range nodes {
		ep, err := domain.ParseEndpoint(n.Address)
		if err != nil {
			return nil, domain.ErrProtocol.WithDetails("route address " + strconv.Quote(n.Address)).WithCause(err)
		}

		entry := domain.RouteEntry{Endpoint: ep}
		if p, err := strconv.Atoi(strings.TrimSpace(n.Priority)); err == nil {
			entry.Priority = p
			entry.HasPriority = true
		}
		entry.ValidFrom, _ = parseRouteTime(n.Start)
		if end, ok := parseRouteTime(n.End); ok {
			entry.ValidUntil = &end
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

var routeTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.0000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseRouteTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range routeTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
