package datastore

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/interface/filesystem"
	"github.com/eoarchive/data-access/service"
	"gopkg.in/yaml.v3"
)

// BackendConfig names an accessor and carries its parameters
type BackendConfig struct {
	Type       string            `yaml:"type"`
	Parameters map[string]string `yaml:"parameters"`
}

// StoreConfig is the configuration of one store
type StoreConfig struct {
	Name             string        `yaml:"name"`
	FileSystem       BackendConfig `yaml:"file_system"`
	MetaInfoProvider BackendConfig `yaml:"meta_info_provider"`
}

// Config is the stores document:
//
//	stores:
//	  - name: sentinel2
//	    file_system: {type: aws_s2, parameters: {temp_dir: /var/cache/s2}}
//	    meta_info_provider: {type: json, parameters: {path: /data/catalog.json}}
type Config struct {
	Stores []StoreConfig `yaml:"stores"`
}

// LoadConfig reads the stores document at path
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, service.MakeFatal(fmt.Errorf("LoadConfig: %w", err))
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, service.MakeFatal(fmt.Errorf("LoadConfig: corrupt stores document %s: %w", path, err))
	}
	return config, nil
}

// Component holds the configured stores of the service
type Component struct {
	stores map[string]*DataStore
}

// NewComponent builds every configured store through the accessor
// registries. An unknown accessor name, a duplicate store name or a backend
// that fails to initialize fails the whole component.
func NewComponent(ctx context.Context, config Config, fsRegistry *filesystem.Registry, providerRegistry *catalog.Registry) (*Component, error) {
	component := &Component{stores: map[string]*DataStore{}}
	for _, storeConfig := range config.Stores {
		if storeConfig.Name == "" {
			return nil, service.MakeFatal(fmt.Errorf("NewComponent: a store has no name"))
		}
		if _, ok := component.stores[storeConfig.Name]; ok {
			return nil, service.MakeFatal(catalog.ErrAlreadyExists{Type: "store", ID: storeConfig.Name})
		}
		fs, err := fsRegistry.Create(ctx, storeConfig.FileSystem.Type, storeConfig.FileSystem.Parameters)
		if err != nil {
			return nil, fmt.Errorf("NewComponent[%s]: %w", storeConfig.Name, err)
		}
		provider, err := providerRegistry.Create(ctx, storeConfig.MetaInfoProvider.Type, storeConfig.MetaInfoProvider.Parameters)
		if err != nil {
			return nil, fmt.Errorf("NewComponent[%s]: %w", storeConfig.Name, err)
		}
		component.stores[storeConfig.Name] = New(storeConfig.Name, fs, provider)
	}
	return component, nil
}

// Store returns the store of the given name
func (c *Component) Store(name string) (*DataStore, error) {
	store, ok := c.stores[name]
	if !ok {
		return nil, catalog.ErrNotFound{Type: "store", ID: name}
	}
	return store, nil
}

// StoreNames returns the configured store names
func (c *Component) StoreNames() []string {
	names := make([]string, 0, len(c.stores))
	for name := range c.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
