// Package jsonfile implements the catalog over a single JSON file.
//
// The file is the list of every record of the store:
//
//	[{"coverage": "POLYGON((...))", "start_time": "2017-09-04 11:18:25", ...}]
//
// A missing or empty file is an empty catalog. An unparseable one is a
// configuration error and construction fails. Every mutation rewrites the
// whole file through a temporary sibling so that a crash never leaves a
// partial catalog behind.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/service"
	"github.com/eoarchive/data-access/service/geometry"
	"github.com/eoarchive/data-access/service/log"
)

// Provider serves and persists records from a single JSON file. All methods
// are safe for concurrent use; mutations hit the disk before they return.
type Provider struct {
	path      string
	supported service.StringSet

	mu       sync.RWMutex
	dataSets []common.DataSetMetaInfo
}

// New loads the catalog at path. supportedDataTypes restricts the data types
// the provider accepts; empty means all.
func New(path string, supportedDataTypes ...string) (*Provider, error) {
	p := &Provider{path: path, supported: service.NewStringSet(supportedDataTypes...)}
	if err := p.load(); err != nil {
		return nil, service.MakeFatal(fmt.Errorf("jsonfile.New: %w", err))
	}
	return p, nil
}

func (p *Provider) load() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			// an absent file is an empty catalog, it will be created on the
			// first mutation
			return nil
		}
		return fmt.Errorf("read %s: %w", p.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		// so is an empty file
		return nil
	}
	if err := json.Unmarshal(data, &p.dataSets); err != nil {
		return fmt.Errorf("corrupt catalog %s: %w", p.path, err)
	}
	return nil
}

// persist is called with p.mu held
func (p *Provider) persist() error {
	records := p.dataSets
	if records == nil {
		records = []common.DataSetMetaInfo{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0766); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (p *Provider) Name() string {
	return "JsonFile[" + p.path + "]"
}

func (p *Provider) Provides(dataType string) bool {
	return len(p.supported) == 0 || p.supported.Exists(dataType)
}

func (p *Provider) Query(ctx context.Context, q catalog.Query) ([]common.DataSetMetaInfo, error) {
	if q.DataType != "" && !p.Provides(q.DataType) {
		return nil, nil
	}

	var intersector *geometry.PreparedIntersector
	if q.RegionWKT != "" {
		var err error
		if intersector, err = geometry.NewPreparedIntersector(q.RegionWKT); err != nil {
			return nil, fmt.Errorf("Query.%w", err)
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	var results []common.DataSetMetaInfo
	for _, info := range p.dataSets {
		ok, err := catalog.Matches(q, info)
		if err != nil {
			// one bad record must not hide the rest of the catalog
			log.Logger(ctx).Sugar().Warnf("skipping %s: %v", info.Identifier, err)
			continue
		}
		if !ok {
			continue
		}
		if intersector != nil && !info.IsGlobal() {
			intersects, err := intersector.IntersectsWKT(info.Coverage)
			if err != nil {
				log.Logger(ctx).Sugar().Warnf("skipping %s: %v", info.Identifier, err)
				continue
			}
			if !intersects {
				continue
			}
		}
		results = append(results, info)
	}
	return results, nil
}

func (p *Provider) Get(ctx context.Context, identifier string) (common.DataSetMetaInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, info := range p.dataSets {
		if info.Identifier == identifier {
			return info, nil
		}
	}
	return common.DataSetMetaInfo{}, catalog.ErrNotFound{Type: "data set", ID: identifier}
}

func (p *Provider) All(ctx context.Context) ([]common.DataSetMetaInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	results := make([]common.DataSetMetaInfo, len(p.dataSets))
	copy(results, p.dataSets)
	return results, nil
}

// Add registers the record. A record with the same identifier is replaced
// (last write wins).
func (p *Provider) Add(ctx context.Context, info common.DataSetMetaInfo) error {
	if err := catalog.Validate(info); err != nil {
		return fmt.Errorf("Add.%w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(info)
	if err := p.persist(); err != nil {
		return fmt.Errorf("Add.%w", err)
	}
	return nil
}

// add is called with p.mu held
func (p *Provider) add(info common.DataSetMetaInfo) {
	for i, existing := range p.dataSets {
		if existing.Identifier == info.Identifier {
			p.dataSets[i] = info
			return
		}
	}
	p.dataSets = append(p.dataSets, info)
}

func (p *Provider) Remove(ctx context.Context, identifier string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remove(identifier) {
		return catalog.ErrNotFound{Type: "data set", ID: identifier}
	}
	if err := p.persist(); err != nil {
		return fmt.Errorf("Remove.%w", err)
	}
	return nil
}

// remove is called with p.mu held
func (p *Provider) remove(identifier string) bool {
	for i, existing := range p.dataSets {
		if existing.Identifier == identifier {
			p.dataSets = append(p.dataSets[:i], p.dataSets[i+1:]...)
			return true
		}
	}
	return false
}

// Apply registers and deletes records as one batch with a single rewrite of
// the file. Unknown identifiers in remove are ignored.
func (p *Provider) Apply(ctx context.Context, add []common.DataSetMetaInfo, remove []string) error {
	for _, info := range add {
		if err := catalog.Validate(info); err != nil {
			return fmt.Errorf("Apply.%w", err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, identifier := range remove {
		p.remove(identifier)
	}
	for _, info := range add {
		p.add(info)
	}
	if err := p.persist(); err != nil {
		return fmt.Errorf("Apply.%w", err)
	}
	return nil
}
