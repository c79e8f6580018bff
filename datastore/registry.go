package datastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/interface/catalog/jsonfile"
	"github.com/eoarchive/data-access/interface/catalog/pg"
	"github.com/eoarchive/data-access/service"
)

// DefaultProviderRegistry returns the registry of the built-in meta info
// provider accessors
func DefaultProviderRegistry() (*catalog.Registry, error) {
	registry := catalog.NewRegistry()
	accessors := map[string]catalog.CreateFunc{
		"json": createJSONProvider,
		"pg":   createPgProvider,
	}
	for name, create := range accessors {
		if err := registry.Register(name, create); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func createJSONProvider(ctx context.Context, params map[string]string) (catalog.MetaInfoProvider, error) {
	path := params["path"]
	if path == "" {
		return nil, service.MakeFatal(fmt.Errorf("json: missing required parameter %q", "path"))
	}
	return jsonfile.New(path, splitList(params["supported_data_types"])...)
}

func createPgProvider(ctx context.Context, params map[string]string) (catalog.MetaInfoProvider, error) {
	dbConnection := params["db_connection"]
	if dbConnection == "" {
		return nil, service.MakeFatal(fmt.Errorf("pg: missing required parameter %q", "db_connection"))
	}
	return pg.New(ctx, dbConnection, splitList(params["supported_data_types"])...)
}

// splitList parses a comma-separated parameter value
func splitList(value string) []string {
	var elems []string
	for _, elem := range strings.Split(value, ",") {
		if elem = strings.TrimSpace(elem); elem != "" {
			elems = append(elems, elem)
		}
	}
	return elems
}
