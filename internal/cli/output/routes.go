package output

import (
	"sort"
	"time"

	"github.com/yndnr/arclink-go/internal/core/domain"
)

// RouteRow is one candidate of a routing table, flattened for display.
type RouteRow struct {
	Key        string     `json:"key" yaml:"key"`
	Priority   *int       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Address    string     `json:"address" yaml:"address"`
	ValidFrom  time.Time  `json:"valid_from" yaml:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`
}

// RouteRows flattens table sorted by key, candidates in priority order.
// Keys without candidates yield one row with the address "(this node)".
func RouteRows(table domain.RoutingTable) []RouteRow {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]RouteRow, 0, len(keys))
	for _, k := range keys {
		entries := append([]domain.RouteEntry(nil), table[k]...)
		if len(entries) == 0 {
			rows = append(rows, RouteRow{Key: k, Address: "(this node)"})
			continue
		}
		domain.SortRoutes(entries)
		for _, e := range entries {
			row := RouteRow{
				Key:        k,
				Address:    e.Endpoint.Address(),
				ValidFrom:  e.ValidFrom,
				ValidUntil: e.ValidUntil,
			}
			if e.HasPriority {
				p := e.Priority
				row.Priority = &p
			}
			rows = append(rows, row)
		}
	}
	return rows
}
