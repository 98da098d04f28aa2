// Package domain defines the core domain models for arclink-go.
package domain

import (
	"path"
	"sort"
	"strings"
	"time"
)

// RouteEntry points at a node that serves a stream.
type RouteEntry struct {
	// Priority orders candidates; lower is preferred.
	Priority int `json:"priority" yaml:"priority"`
	// HasPriority is false when the routing document omitted the priority.
	HasPriority bool `json:"has_priority" yaml:"has_priority"`

	ValidFrom  time.Time  `json:"valid_from" yaml:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`

	Endpoint Endpoint `json:"endpoint" yaml:"endpoint"`

	// Authoritative marks the sentinel meaning "the node that answered the
	// routing query holds the data itself".
	Authoritative bool `json:"authoritative,omitempty" yaml:"authoritative,omitempty"`
}

// AuthoritativeRoute returns the "current node" sentinel.
func AuthoritativeRoute() RouteEntry {
	return RouteEntry{Authoritative: true}
}

// RoutingTable maps NET.STA.LOC.CHA keys to candidate routes. An empty,
// non-nil list means the responding node is authoritative for the key.
type RoutingTable map[string][]RouteEntry

// RouteKey builds a routing table key from its four parts.
func RouteKey(network, station, location, channel string) string {
	return strings.Join([]string{network, station, location, channel}, ".")
}

// Match collects the routes of every key matching sel, sorted ascending by
// priority with priority-less entries last. ok is false when no key
// matched at all.
func (t RoutingTable) Match(sel Selector) (routes []RouteEntry, ok bool) {
	want := [4]string{sel.Network, sel.Station, sel.Location, sel.Channel}

	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	// Map iteration order is random; keep ties deterministic.
	sort.Strings(keys)

	for _, key := range keys {
		if !keyMatches(key, want) {
			continue
		}
		ok = true
		entries := t[key]
		if len(entries) == 0 {
			routes = append(routes, AuthoritativeRoute())
			continue
		}
		routes = append(routes, entries...)
	}
	if !ok {
		return nil, false
	}

	SortRoutes(routes)
	return routes, true
}

// SortRoutes orders routes ascending by priority; entries without a
// priority keep their relative order at the end.
func SortRoutes(routes []RouteEntry) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if a.HasPriority != b.HasPriority {
			return a.HasPriority
		}
		if !a.HasPriority {
			return false
		}
		return a.Priority < b.Priority
	})
}

func keyMatches(key string, want [4]string) bool {
	parts := strings.Split(key, ".")
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	for i := 0; i < 4; i++ {
		if !partMatches(parts[i], want[i]) {
			return false
		}
	}
	return true
}

func partMatches(keyPart, value string) bool {
	if keyPart == "" || keyPart == "*" || value == "" || value == "*" {
		return true
	}
	if keyPart == value {
		return true
	}
	if ok, err := path.Match(value, keyPart); err == nil && ok {
		return true
	}
	ok, err := path.Match(keyPart, value)
	return err == nil && ok
}
