// Package tests holds end-to-end tests that run the client against
// several in-process archive nodes.
package tests
