package fetcher

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/airbusgeo/geocube/interface/storage/uri"
	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
)

// URIFetcher implements Fetcher for any uri supported by the storage layer
// (gs://, file://, http(s)://)
// pattern e.g. gs://archive/emulators/{BASENAME}
type URIFetcher struct {
	pattern string
}

// Name implements Fetcher
func (f *URIFetcher) Name() string {
	return "URI"
}

// NewURIFetcher creates a new Fetcher for a uri pattern
func NewURIFetcher(pattern string) *URIFetcher {
	return &URIFetcher{pattern: pattern}
}

// Fetch implements Fetcher
func (f *URIFetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	downloadLink := common.FormatBrackets(f.pattern, formatInfo(identifier))

	fileUri, err := uri.ParseUri(downloadLink)
	if err != nil {
		return fmt.Errorf("URIFetcher: %w", err)
	}

	ext := service.GetExt(downloadLink)
	localFile := destFilePath(localDir, downloadLink, ext)

	switch fileUri.Protocol() {
	case "file", "":
		if err := fileCopy(strings.TrimPrefix(downloadLink, "file://"), localFile); err != nil {
			return fmt.Errorf("URIFetcher.%w", err)
		}
	default:
		if err = fileUri.DownloadToFile(ctx, localFile); err != nil {
			return fmt.Errorf("URIFetcher: %w", err)
		}
	}

	if ext == service.ExtensionZIP {
		defer os.Remove(localFile)
		if err := unarchive(localFile, localDir); err != nil {
			return service.MakeTemporary(fmt.Errorf("URIFetcher.Unarchive: %w", err))
		}
	}
	return nil
}

// fileCopy copies a single file from src to dst
func fileCopy(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrDataSetNotFound{src}
		}
		return fmt.Errorf("fileCopy.ReadFile: %w", err)
	}

	_ = os.MkdirAll(path.Dir(dst), 0755)
	if err = os.WriteFile(dst, input, 0644); err != nil {
		return fmt.Errorf("fileCopy.WriteFile: %w", err)
	}
	return nil
}
