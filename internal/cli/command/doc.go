// Package command defines the arclink-cli commands with urfave/cli/v2.
//
//   - root.go: application, global flags, per-run wiring
//   - waveform.go: waveform download
//   - metadata.go: routing, inventory, qc and response
//   - info.go: version and config
//
// Every data command builds a request from flags, runs it through one
// service.Client and prints a summary in the selected output format.
package command
