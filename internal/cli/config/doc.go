// Package config defines the arclink-cli configuration.
//
//   - spec.go: ClientConfig and its sections
//   - default.go: defaults of the reference client
//   - loader.go: file, environment and flag merging via confloader
//   - verify.go, sanitize.go: validation and masking for display
package config
