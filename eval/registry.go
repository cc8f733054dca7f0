// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry manages all evaluable components in the system.
//
// Description:
//
//	The Registry provides a central location for registering and looking up
//	evaluable components. It supports concurrent access and provides methods
//	for batch operations like health checks.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Evaluable
}

// NewRegistry creates a new empty registry.
//
// Outputs:
//   - *Registry: The new registry. Never nil.
//
// Example:
//
//	registry := eval.NewRegistry()
//	registry.Register(engine)
func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]Evaluable),
	}
}

// Register adds a component to the registry.
//
// Description:
//
//	Registers the component under its Name(). The name must be unique
//	within the registry.
//
// Inputs:
//   - component: The evaluable component to register. Must not be nil.
//
// Outputs:
//   - error: nil on success, ErrNilComponent if component is nil,
//     ErrAlreadyRegistered if name is already taken.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Register(component Evaluable) error {
	if component == nil {
		return ErrNilComponent
	}

	name := component.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}

	r.components[name] = component
	return nil
}

// MustRegister registers a component and panics on error.
//
// Description:
//
//	Convenience method for registration during initialization.
//	Should only be used during startup, not at runtime.
//
// Inputs:
//   - component: The evaluable component to register. Must not be nil.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) MustRegister(component Evaluable) {
	if err := r.Register(component); err != nil {
		panic(fmt.Sprintf("eval: failed to register %v: %v", component.Name(), err))
	}
}

// Get retrieves a component by name.
//
// Inputs:
//   - name: The name of the component.
//
// Outputs:
//   - Evaluable: The component, or nil if not found.
//   - bool: True if the component was found.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Get(name string) (Evaluable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	component, ok := r.components[name]
	return component, ok
}

// List returns the names of all registered components, sorted.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of the component map.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) All() map[string]Evaluable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	components := make(map[string]Evaluable, len(r.components))
	for name, component := range r.components {
		components[name] = component
	}
	return components
}

// Count returns the number of registered components.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// HealthCheckAll runs health checks on all components concurrently.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - concurrency: Maximum concurrent health checks. Defaults to 10.
//
// Outputs:
//   - []HealthResult: Results for all components, sorted by name.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) HealthCheckAll(ctx context.Context, concurrency int) []HealthResult {
	if concurrency <= 0 {
		concurrency = 10
	}

	components := r.All()
	results := make([]HealthResult, 0, len(components))
	resultsCh := make(chan HealthResult, len(components))

	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for name, component := range components {
		wg.Add(1)
		go func(name string, component Evaluable) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsCh <- HealthResult{
					Component: name,
					Status:    HealthUnknown,
					Message:   "context cancelled",
					Timestamp: time.Now(),
				}
				return
			}

			start := time.Now()
			err := component.HealthCheck(ctx)
			duration := time.Since(start)

			result := HealthResult{
				Component: name,
				Duration:  duration,
				Timestamp: time.Now(),
			}

			if err != nil {
				result.Status = HealthUnhealthy
				result.Message = err.Error()
			} else {
				result.Status = HealthHealthy
				result.Message = "OK"
			}

			resultsCh <- result
		}(name, component)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	for result := range resultsCh {
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Component < results[j].Component
	})

	return results
}

// GetAllProperties returns all properties from all registered components.
//
// Outputs:
//   - map[string][]Property: Map from component name to its properties.
//     Components without properties are omitted.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) GetAllProperties() map[string][]Property {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string][]Property)
	for name, component := range r.components {
		props := component.Properties()
		if len(props) > 0 {
			result[name] = props
		}
	}
	return result
}

// GetAllMetrics returns all metric definitions from all registered components.
//
// Outputs:
//   - map[string][]MetricDefinition: Map from component name to its metrics.
//     Components without metrics are omitted.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) GetAllMetrics() map[string][]MetricDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string][]MetricDefinition)
	for name, component := range r.components {
		metrics := component.Metrics()
		if len(metrics) > 0 {
			result[name] = metrics
		}
	}
	return result
}

// -----------------------------------------------------------------------------
// Default Registry
// -----------------------------------------------------------------------------

// DefaultRegistry is the global registry instance.
// Components can register themselves during init() using MustRegister.
var DefaultRegistry = NewRegistry()

// Register registers a component with the default registry.
func Register(component Evaluable) error {
	return DefaultRegistry.Register(component)
}

// MustRegister registers a component with the default registry, panicking on error.
func MustRegister(component Evaluable) {
	DefaultRegistry.MustRegister(component)
}

// Get retrieves a component from the default registry.
func Get(name string) (Evaluable, bool) {
	return DefaultRegistry.Get(name)
}

// List returns all component names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}
