// Package names mints process-wide unique identifiers for synthesized
// variables and queries.
package names

import (
	"fmt"
	"sync"
)

var (
	mu      sync.Mutex
	counter uint64
)

// Fresh returns a name that has not been handed out before in this process.
// Generated names start with an underscore so they can never collide with
// user-written identifiers, which the surface syntax forbids from starting
// with one.
func Fresh(hint string) string {
	if hint == "" {
		hint = "name"
	}
	mu.Lock()
	defer mu.Unlock()
	counter++
	return fmt.Sprintf("_%s%d", hint, counter)
}

// FreshOmitting returns the first "_<hint><i>" not present in omit. Unlike
// Fresh it does not consume the global counter; it is used where stable
// names matter more than global uniqueness.
func FreshOmitting(hint string, omit map[string]bool) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("_%s%d", hint, i)
		if !omit[name] {
			return name
		}
	}
}

// IsGenerated reports whether name was produced by this package.
func IsGenerated(name string) bool {
	return len(name) > 0 && name[0] == '_'
}
