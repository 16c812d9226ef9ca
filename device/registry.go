package device

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates an unconnected Source.
type Factory func(o Options) Source

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// Register makes a backend available under name.
// This should be called from backend package init() functions.
// The name is case-insensitive.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = f
}

// Lookup returns the factory registered under name, or nil.
func Lookup(name string) Factory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[strings.ToLower(name)]
}

// Open creates an unconnected Source from the named backend.
func Open(name string, o Options) (Source, error) {
	f := Lookup(name)
	if f == nil {
		return nil, fmt.Errorf("unknown device backend %q (available: %s)", name, strings.Join(List(), ", "))
	}
	return f(o), nil
}

// List returns the registered backend names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
