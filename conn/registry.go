// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package conn

import (
	"errors"
	"sort"
	"sync"
)

// Options are passed to driver factories.
type Options struct {
	// Device is a driver-specific device path; empty selects the default.
	Device string

	// Features restricts the advertised features when nonzero. Drivers that
	// model the engine in software use it as the feature set to emulate.
	Features Feature
}

// Factory opens a connection with the given options.
type Factory func(opts Options) (Conn, error)

// Driver is a registered connection driver.
type Driver struct {
	// Name is the unique identifier for this driver.
	Name string

	// Priority determines selection order (higher = preferred).
	//   - 100: kernel drivers
	//   - 10: software models
	Priority int

	// Factory opens connections.
	Factory Factory

	// Available reports if the driver can be used on this system.
	Available func() bool
}

var globalRegistry = &Registry{}

// Registry manages connection drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]*Driver
}

// NewRegistry creates a new empty registry.
// Most code should use the global registry via Register and OpenBest.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]*Driver)}
}

// Register adds a driver to the global registry.
// If available is nil, the driver is assumed always available.
// Registering a name that already exists replaces the previous entry.
func Register(name string, priority int, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Unregister removes a driver from the global registry.
func Unregister(name string) {
	globalRegistry.Unregister(name)
}

// Drivers returns all registered driver names sorted by priority.
func Drivers() []string {
	return globalRegistry.List()
}

// Open opens a connection with a specific driver.
func Open(name string, opts Options) (Conn, error) {
	return globalRegistry.Open(name, opts)
}

// OpenBest opens a connection with the best available driver.
func OpenBest(opts Options) (Conn, error) {
	return globalRegistry.OpenBest(opts)
}

// Register adds a driver to this registry.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drivers == nil {
		r.drivers = make(map[string]*Driver)
	}
	if available == nil {
		available = func() bool { return true }
	}
	r.drivers[name] = &Driver{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a driver from this registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.drivers, name)
}

// List returns all registered driver names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(false)
}

// Available returns the names of available drivers sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(true)
}

// Open opens a connection with a specific driver.
func (r *Registry) Open(name string, opts Options) (Conn, error) {
	r.mu.RLock()
	d, ok := r.drivers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &DriverNotFoundError{Name: name}
	}
	if !d.Available() {
		return nil, &DriverUnavailableError{Name: name}
	}
	return d.Factory(opts)
}

// OpenBest tries every available driver in priority order and returns the
// first connection that opens.
func (r *Registry) OpenBest(opts Options) (Conn, error) {
	r.mu.RLock()
	names := r.sortedNames(true)
	r.mu.RUnlock()

	var errs []error
	for _, name := range names {
		c, err := r.Open(name, opts)
		if err == nil {
			return c, nil
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNoDriver
}

// sortedNames returns driver names by priority, highest first, ties by name.
// Must be called with lock held.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	if len(r.drivers) == 0 {
		return nil
	}
	drivers := make([]*Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		if onlyAvailable && !d.Available() {
			continue
		}
		drivers = append(drivers, d)
	}
	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].Priority != drivers[j].Priority {
			return drivers[i].Priority > drivers[j].Priority
		}
		return drivers[i].Name < drivers[j].Name
	})

	names := make([]string, len(drivers))
	for i, d := range drivers {
		names[i] = d.Name
	}
	return names
}

// ErrNoDriver is returned when no drivers are registered or available.
var ErrNoDriver = errors.New("conn: no driver available")

// DriverNotFoundError indicates a named driver is not registered.
type DriverNotFoundError struct {
	Name string
}

func (e *DriverNotFoundError) Error() string {
	return "conn: driver not found: " + e.Name
}

// DriverUnavailableError indicates a driver exists but is not available.
type DriverUnavailableError struct {
	Name string
}

func (e *DriverUnavailableError) Error() string {
	return "conn: driver unavailable: " + e.Name
}
