// Package buildinfo exposes the version of arclink-cli.
//
// Values are injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/arclink-go/internal/infra/buildinfo.Version=v0.3.0"
//
// Without ldflags the module version and VCS revision recorded by the Go
// toolchain are used when available.
package buildinfo
