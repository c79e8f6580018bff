package fetcher

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
)

// LpDaacFetcher implements Fetcher for the NASA LP DAAC data pool (MODIS
// granules). Earthdata authenticates through a redirect chain, so the basic
// auth header is copied on redirects.
// pattern e.g. https://e4ftl01.cr.usgs.gov/MOTA/{PRODUCT}.{COLLECTION}/{DATE}/{BASENAME}
type LpDaacFetcher struct {
	pattern string
	user    string
	pword   string
}

// Name implements Fetcher
func (f *LpDaacFetcher) Name() string {
	return "LpDaac"
}

// NewLpDaacFetcher creates a new Fetcher from the LP DAAC data pool
func NewLpDaacFetcher(pattern, user, pword string) *LpDaacFetcher {
	return &LpDaacFetcher{pattern: pattern, user: user, pword: pword}
}

// Fetch implements Fetcher
func (f *LpDaacFetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	if _, err := common.ParseModisGranule(path.Base(identifier)); err != nil {
		return fmt.Errorf("LpDaacFetcher: %w", err)
	}
	url := common.FormatBrackets(f.pattern, formatInfo(identifier))
	localFile := destFilePath(localDir, identifier, service.NoExtension)

	// The data pool regularly throttles, retry before giving up
	err := service.Retriable(ctx, func() error {
		return downloadFileWithAuth(ctx, url, localFile, f.Name()+":"+identifier, &f.user, &f.pword, "", nil, true)
	}, 30*time.Second, 3)
	if err != nil {
		return fmt.Errorf("LpDaacFetcher.%w", err)
	}
	return nil
}
