package fetcher

import (
	"context"
	"fmt"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
)

// MundiFetcher implements Fetcher for Mundi object storage
// pattern e.g. https://obs.eu-de.otc.t-systems.com/s2-l1c/{YEAR}/{MONTH}/{DAY}/{BASENAME}.zip
type MundiFetcher struct {
	pattern    string
	seeedToken string
}

// Name implements Fetcher
func (f *MundiFetcher) Name() string {
	return "Mundi"
}

// NewMundiFetcher creates a new Fetcher from Mundi
func NewMundiFetcher(pattern, seeedToken string) *MundiFetcher {
	return &MundiFetcher{pattern: pattern, seeedToken: seeedToken}
}

// Fetch implements Fetcher
func (f *MundiFetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	url := common.FormatBrackets(f.pattern, formatInfo(identifier))

	authorizationToken := "seeedtoken=" + f.seeedToken
	if service.GetExt(url) == service.ExtensionZIP {
		if err := downloadZipWithAuth(ctx, url, localDir, identifier, f.Name(), nil, nil, "Cookie", &authorizationToken, false); err != nil {
			return fmt.Errorf("MundiFetcher.%w", err)
		}
		return nil
	}

	localFile := destFilePath(localDir, url, service.NoExtension)
	if err := downloadFileWithAuth(ctx, url, localFile, f.Name()+":"+identifier, nil, nil, "Cookie", &authorizationToken, false); err != nil {
		return fmt.Errorf("MundiFetcher.%w", err)
	}
	return nil
}
