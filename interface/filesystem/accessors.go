package filesystem

import (
	"context"
	"fmt"

	"github.com/eoarchive/data-access/interface/fetcher"
	"github.com/eoarchive/data-access/service"
)

// DefaultRegistry returns the registry of the built-in file system accessors
func DefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	accessors := map[string]CreateFunc{
		"local":  createLocal,
		"aws_s2": createAwsS2,
		"http":   createHTTP,
		"lpdaac": createLpDaac,
		"ftp":    createFTP,
		"gs":     createGS,
		"mundi":  createMundi,
		"scihub": createSciHub,
		"uri":    createURI,
	}
	for name, create := range accessors {
		if err := registry.Register(name, create); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func requiredParam(params map[string]string, accessor, key string) (string, error) {
	if value := params[key]; value != "" {
		return value, nil
	}
	return "", service.MakeFatal(fmt.Errorf("%s: missing required parameter %q", accessor, key))
}

func createLocal(ctx context.Context, params map[string]string) (FileSystem, error) {
	path, err := requiredParam(params, "local", "path")
	if err != nil {
		return nil, err
	}
	return NewLocalArchive(ctx, path, params["pattern"], params["mirror"], nil)
}

func createAwsS2(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "aws_s2", "temp_dir")
	if err != nil {
		return nil, err
	}
	f := fetcher.NewAwsS2Fetcher(params["access_key_id"], params["secret_access_key"])
	return NewLocallyWrapped(tempDir, f, TileKeyLayout, nil, params)
}

func createHTTP(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "http", "temp_dir")
	if err != nil {
		return nil, err
	}
	pattern, err := requiredParam(params, "http", "pattern")
	if err != nil {
		return nil, err
	}
	f := fetcher.NewHTTPFetcher(pattern, params["username"], params["password"], params["token"])
	return NewLocallyWrapped(tempDir, f, nil, nil, params)
}

// lpDaacPattern is the LP DAAC data pool layout for the MODIS combined
// products (MCD43A1, MCD15A2H)
const lpDaacPattern = "https://e4ftl01.cr.usgs.gov/MOTA/{PRODUCT}.{COLLECTION}/{DATE}/{BASENAME}"

func createLpDaac(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "lpdaac", "temp_dir")
	if err != nil {
		return nil, err
	}
	username, err := requiredParam(params, "lpdaac", "username")
	if err != nil {
		return nil, err
	}
	password, err := requiredParam(params, "lpdaac", "password")
	if err != nil {
		return nil, err
	}
	pattern := params["pattern"]
	if pattern == "" {
		pattern = lpDaacPattern
	}
	f := fetcher.NewLpDaacFetcher(pattern, username, password)
	return NewLocallyWrapped(tempDir, f, nil, nil, params)
}

func createFTP(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "ftp", "temp_dir")
	if err != nil {
		return nil, err
	}
	url, err := requiredParam(params, "ftp", "url")
	if err != nil {
		return nil, err
	}
	f := fetcher.NewFTPFetcher(url, params["username"], params["password"])
	return NewLocallyWrapped(tempDir, f, nil, nil, params)
}

func createGS(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "gs", "temp_dir")
	if err != nil {
		return nil, err
	}
	pattern, err := requiredParam(params, "gs", "pattern")
	if err != nil {
		return nil, err
	}
	return NewLocallyWrapped(tempDir, fetcher.NewGSFetcher(pattern), nil, nil, params)
}

func createMundi(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "mundi", "temp_dir")
	if err != nil {
		return nil, err
	}
	pattern, err := requiredParam(params, "mundi", "pattern")
	if err != nil {
		return nil, err
	}
	return NewLocallyWrapped(tempDir, fetcher.NewMundiFetcher(pattern, params["seeed_token"]), nil, nil, params)
}

func createSciHub(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "scihub", "temp_dir")
	if err != nil {
		return nil, err
	}
	username, err := requiredParam(params, "scihub", "username")
	if err != nil {
		return nil, err
	}
	password, err := requiredParam(params, "scihub", "password")
	if err != nil {
		return nil, err
	}
	return NewLocallyWrapped(tempDir, fetcher.NewSciHubFetcher(username, password), nil, nil, params)
}

func createURI(ctx context.Context, params map[string]string) (FileSystem, error) {
	tempDir, err := requiredParam(params, "uri", "temp_dir")
	if err != nil {
		return nil, err
	}
	pattern, err := requiredParam(params, "uri", "pattern")
	if err != nil {
		return nil, err
	}
	return NewLocallyWrapped(tempDir, fetcher.NewURIFetcher(pattern), nil, nil, params)
}
