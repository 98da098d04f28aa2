// Package benchmark provides performance benchmarks for the ArcLink client.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run only the request cycle against an in-process node:
//
//	go test -bench=BenchmarkRequestCycle -benchmem -benchtime=5s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
