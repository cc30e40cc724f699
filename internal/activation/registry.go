package activation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("activation not found")
	ErrExists   = errors.New("activation already registered")
)

var registry = struct {
	mu sync.RWMutex
	m  map[string]Func
}{
	m: map[string]Func{
		"sigmoid": Sigmoid,
		"tanh":    Tanh,
		"relu":    ReLU,
		"linear":  Linear,
		"xx1":     XX1(100, 0.5),
	},
}

// Register adds a named activation function. Names are case-insensitive.
func Register(name string, fn Func) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return errors.New("activation name is required")
	}
	if fn == nil {
		return fmt.Errorf("activation %q: nil function", key)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.m[key]; ok {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}
	registry.m[key] = fn
	return nil
}

// Get returns the activation registered under name. The empty name selects
// the default sigmoid.
func Get(name string) (Func, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Sigmoid, nil
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	fn, ok := registry.m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fn, nil
}

// Names lists registered activation names in sorted order.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
