// Package output renders command results for arclink-cli as tables,
// JSON or YAML, and shows a spinner on stderr while a request is pending.
package output
