//go:build !debug

// Package assert holds structural assertions compiled in with -tags debug.
package assert

// Valid is a no-op in production.
// Enable with -tags debug for runtime checks.
func Valid(string, func() error) {}

// True is a no-op in production.
// Enable with -tags debug for runtime checks.
func True(string, bool, string, ...any) {}
