package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/server/archiveserver"
)

// RouteCounts defines the routing table sizes for benchmarking.
var RouteCounts = []int{10, 100, 1000, 5000}

// PayloadSizes defines the payload sizes for benchmarking.
var PayloadSizes = []int{4 << 10, 64 << 10, 1 << 20}

var (
	t0 = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

// networkCode returns a distinct two letter code for i.
func networkCode(i int) string {
	return string(rune('A'+i/26%26)) + string(rune('A'+i%26))
}

// buildRoutes renders a routing document with n station routes spread
// over networks, each with two candidate nodes.
func buildRoutes(n int) []archiveserver.Route {
	routes := make([]archiveserver.Route, 0, n)
	for i := 0; i < n; i++ {
		routes = append(routes, archiveserver.Route{
			Network: networkCode(i / 50),
			Station: fmt.Sprintf("S%03d", i%50),
			Nodes: []archiveserver.Node{
				{Address: fmt.Sprintf("node%d.example.org:18001", i%7), Priority: 2},
				{Address: fmt.Sprintf("node%d.example.org:18002", i%5), Priority: 1},
			},
		})
	}
	return routes
}

// buildTable builds the decoded equivalent of buildRoutes.
func buildTable(n int) domain.RoutingTable {
	table := make(domain.RoutingTable, n)
	for _, r := range buildRoutes(n) {
		entries := make([]domain.RouteEntry, 0, len(r.Nodes))
		for _, node := range r.Nodes {
			ep, _ := domain.ParseEndpoint(node.Address)
			entries = append(entries, domain.RouteEntry{Endpoint: ep, Priority: node.Priority, HasPriority: true})
		}
		table[domain.RouteKey(r.Network, r.Station, "", "")] = entries
	}
	return table
}

// startNode starts an archive node that answers every request with
// payload after one pending status round.
func startNode(b *testing.B, payload []byte) *archiveserver.Server {
	b.Helper()
	srv := archiveserver.New(archiveserver.DefaultConfig(), archiveserver.ResponderFunc(func(req *archiveserver.Request) *archiveserver.Script {
		return &archiveserver.Script{
			Statuses: []string{archiveserver.PendingDocument(req.ID), archiveserver.ReadyDocument(req.ID)},
			Payload:  payload,
		}
	}), nil)
	if err := srv.Start(context.Background()); err != nil {
		b.Fatalf("Start failed: %v", err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func sizeName(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%dMiB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%dKiB", n>>10)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
