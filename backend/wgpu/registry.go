package wgpu

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Device backend names.
const (
	BackendVulkan = "vulkan"
	BackendNoop   = "noop"
)

// Factory opens a platform on one device backend.
type Factory func(opts ...Option) (*Platform, error)

// registry holds registered device backends.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for OpenDefault (first that opens wins).
	backendPriority = []string{BackendVulkan, BackendNoop}
)

// Register registers a platform factory with the given name.
// If a factory with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a factory from the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open creates a platform on the named backend.
func Open(name string, opts ...Option) (*Platform, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("wgpu: unknown backend %q (available: %v)", name, Available())
	}
	return factory(opts...)
}

// OpenDefault opens the first backend, in priority order, that succeeds.
// Vulkan is preferred over the noop backend.
func OpenDefault(opts ...Option) (*Platform, error) {
	registryMu.RLock()
	order := slices.Clone(backendPriority)
	for name := range factories {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	registryMu.RUnlock()

	var errs []error
	for _, name := range order {
		registryMu.RLock()
		factory, ok := factories[name]
		registryMu.RUnlock()
		if !ok {
			continue
		}
		p, err := factory(opts...)
		if err == nil {
			slogger().Debug("wgpu: default backend selected", "backend", name)
			return p, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	if len(errs) == 0 {
		return nil, ErrNoAdapter
	}
	return nil, errors.Join(errs...)
}
