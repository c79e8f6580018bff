package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CreateFunc builds a provider from backend-specific parameters
type CreateFunc func(ctx context.Context, params map[string]string) (MetaInfoProvider, error)

// Registry maps accessor names to provider factories. Accessor names are the
// values accepted by the "meta_info_provider" field of a store configuration.
type Registry struct {
	mu        sync.RWMutex
	accessors map[string]CreateFunc
}

func NewRegistry() *Registry {
	return &Registry{accessors: map[string]CreateFunc{}}
}

// Register adds a factory under the given accessor name
func (r *Registry) Register(name string, create CreateFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accessors[name]; ok {
		return ErrAlreadyExists{Type: "metadata accessor", ID: name}
	}
	r.accessors[name] = create
	return nil
}

// Create builds a provider with the factory registered under the accessor name
func (r *Registry) Create(ctx context.Context, name string, params map[string]string) (MetaInfoProvider, error) {
	r.mu.RLock()
	create, ok := r.accessors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound{Type: "metadata accessor", ID: name}
	}
	provider, err := create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return provider, nil
}

// Accessors returns the registered accessor names
func (r *Registry) Accessors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.accessors))
	for name := range r.accessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
