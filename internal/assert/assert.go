//go:build debug

package assert

import "fmt"

// Valid panics if check reports an error.
// Only enabled with -tags debug.
func Valid(method string, check func() error) {
	if err := check(); err != nil {
		panic(fmt.Sprintf("%s: %v", method, err))
	}
}

// True panics if cond is false.
// Only enabled with -tags debug.
func True(method string, cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("%s: %s", method, fmt.Sprintf(format, args...)))
	}
}
