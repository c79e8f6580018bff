// Package filesystem defines the capability interfaces giving access to the
// data sets of a store, the local archive implementation and the cache
// decorator wrapping remote backends.
package filesystem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/interface/catalog"
)

type ErrAlreadyExists struct {
	Type, ID string
}

func (e ErrAlreadyExists) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Type, e.ID)
}

type ErrNotFound struct {
	Type, ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.ID)
}

// FileSystem resolves the records of one store to local files
type FileSystem interface {
	// Name of the file system
	Name() string
	// Scan enumerates the data sets the backend can currently resolve without
	// fetching, deriving a record for each. Unreadable items are reported as
	// faults, they never abort the walk.
	Scan(ctx context.Context) ([]common.DataSetMetaInfo, []catalog.Fault, error)
	// Open resolves the record to a local file reference, fetching from the
	// remote backend on the first access. May return fetcher.ErrDataSetNotFound.
	Open(ctx context.Context, info common.DataSetMetaInfo) (common.FileRef, error)
	// ClearCache removes every locally cached copy. The remote data and the
	// catalog are untouched.
	ClearCache(ctx context.Context) error
	// NotifyRegistered tells the file system that the record has been durably
	// registered in the catalog, so that fetch leftovers can be purged.
	// Cleanup failures are logged, they never fail the caller.
	NotifyRegistered(ctx context.Context, info common.DataSetMetaInfo) error
	// Parameters returns the creation parameters of the file system
	Parameters() map[string]string
}

// WritableFileSystem is a FileSystem that can ingest and delete data sets
type WritableFileSystem interface {
	FileSystem
	// Put ingests the raw data at sourcePath into the canonical layout of the
	// backend and returns the derived record
	Put(ctx context.Context, sourcePath string) (common.DataSetMetaInfo, error)
	// Remove deletes the backend's copy of the data set. May return
	// fetcher.ErrDataSetNotFound.
	Remove(ctx context.Context, info common.DataSetMetaInfo) error
}

// Lister is implemented by file systems whose remote backend can enumerate
// the identifiers it offers without fetching them
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// CreateFunc builds a file system from backend-specific parameters
type CreateFunc func(ctx context.Context, params map[string]string) (FileSystem, error)

// Registry maps accessor names to file system factories. Accessor names are
// the values accepted by the "file_system" field of a store configuration.
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
		return ErrAlreadyExists{Type: "file system accessor", ID: name}
	}
	r.accessors[name] = create
	return nil
}

// Create builds a file system with the factory registered under the accessor
// name
func (r *Registry) Create(ctx context.Context, name string, params map[string]string) (FileSystem, error) {
	r.mu.RLock()
	create, ok := r.accessors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound{Type: "file system accessor", ID: name}
	}
	fs, err := create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return fs, nil
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
