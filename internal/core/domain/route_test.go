package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func route(priority int, host string, port int) RouteEntry {
	return RouteEntry{Priority: priority, HasPriority: true, Endpoint: Endpoint{Host: host, Port: port}}
}

func TestRoutingTable_Match_Scenario(t *testing.T) {
	table := RoutingTable{
		"XX.AAA..EHZ": {route(2, "h2", 2), route(1, "h1", 1)},
	}

	got, ok := table.Match(Selector{Network: "XX", Station: "AAA", Location: "", Channel: "EHZ"})
	if !ok {
		t.Fatal("Match() ok = false, want true")
	}

	want := []RouteEntry{route(1, "h1", 1), route(2, "h2", 2)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoutingTable_Match_NoKey(t *testing.T) {
	table := RoutingTable{
		"GE.APE..": {route(1, "geofon", 18001)},
	}

	got, ok := table.Match(Selector{Network: "XX", Station: "AAA", Channel: "EHZ"})
	if ok {
		t.Errorf("Match() ok = true, want false (routes %v)", got)
	}
	if got != nil {
		t.Errorf("Match() routes = %v, want nil", got)
	}
}

func TestRoutingTable_Match_SortsMissingPriorityLast(t *testing.T) {
	table := RoutingTable{
		"GE...":     {{Endpoint: Endpoint{Host: "nopri", Port: 1}}},
		"GE.APE..":  {route(5, "five", 5)},
		"GE.APE..B": {route(1, "one", 1)},
		"GE.*..":    {},
	}

	got, ok := table.Match(Selector{Network: "GE", Station: "APE", Channel: "BHZ"})
	if !ok {
		t.Fatal("Match() ok = false")
	}

	// "GE.APE..B" does not match channel BHZ.
	want := []RouteEntry{
		route(5, "five", 5),
		AuthoritativeRoute(),
		{Endpoint: Endpoint{Host: "nopri", Port: 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}

	for i := 1; i < len(got); i++ {
		if got[i].HasPriority && !got[i-1].HasPriority {
			t.Errorf("entry %d has a priority but follows a priority-less entry", i)
		}
	}
}

func TestRoutingTable_Match_EmptyListIsAuthoritative(t *testing.T) {
	table := RoutingTable{"GE.APE..": {}}

	got, ok := table.Match(Selector{Network: "GE", Station: "APE"})
	if !ok {
		t.Fatal("Match() ok = false")
	}
	if len(got) != 1 || !got[0].Authoritative {
		t.Errorf("Match() = %v, want single authoritative sentinel", got)
	}
}

func TestPartMatches(t *testing.T) {
	tests := []struct {
		keyPart string
		value   string
		want    bool
	}{
		{"", "EHZ", true},
		{"*", "EHZ", true},
		{"EHZ", "", true},
		{"EHZ", "*", true},
		{"EHZ", "EHZ", true},
		{"EHZ", "EH?", true},
		{"EHZ", "EH*", true},
		{"BH*", "BHN", true},
		{"EHZ", "BHZ", false},
		{"EHZ", "BH*", false},
		{"APE", "AP", false},
	}

	for _, tt := range tests {
		t.Run(tt.keyPart+"/"+tt.value, func(t *testing.T) {
			if got := partMatches(tt.keyPart, tt.value); got != tt.want {
				t.Errorf("partMatches(%q, %q) = %v, want %v", tt.keyPart, tt.value, got, tt.want)
			}
		})
	}
}

func TestSortRoutes_Stable(t *testing.T) {
	routes := []RouteEntry{
		{Endpoint: Endpoint{Host: "a"}},
		route(3, "c", 3),
		{Endpoint: Endpoint{Host: "b"}},
		route(1, "d", 1),
		route(3, "e", 3),
	}
	SortRoutes(routes)

	var hosts []string
	for _, r := range routes {
		hosts = append(hosts, r.Endpoint.Host)
	}
	want := []string{"d", "c", "e", "a", "b"}
	if diff := cmp.Diff(want, hosts); diff != "" {
		t.Errorf("SortRoutes() order mismatch (-want +got):\n%s", diff)
	}
}

func TestRouteKey(t *testing.T) {
	if got := RouteKey("GE", "APE", "", ""); got != "GE.APE.." {
		t.Errorf("RouteKey() = %q, want %q", got, "GE.APE..")
	}
}
