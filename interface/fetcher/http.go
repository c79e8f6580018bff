package fetcher

import (
	"context"
	"fmt"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
)

// HTTPFetcher implements Fetcher for direct download links
// pattern is a http(s) url that can contain several {IDENTIFIER} replaced
// according to the information found in the identifier (see formatInfo), e.g.
// https://data.example.org/cams/{BASENAME}
type HTTPFetcher struct {
	pattern string
	user    *string
	pword   *string
	token   *string
}

// Name implements Fetcher
func (f *HTTPFetcher) Name() string {
	return "HTTP"
}

// NewHTTPFetcher creates a new Fetcher for direct download links.
// user/pword enable basic auth, token a bearer token. Empty values disable
// the corresponding auth.
func NewHTTPFetcher(pattern, user, pword, token string) *HTTPFetcher {
	f := &HTTPFetcher{pattern: pattern}
	if user != "" {
		f.user, f.pword = &user, &pword
	}
	if token != "" {
		bearer := "Bearer " + token
		f.token = &bearer
	}
	return f
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	url := common.FormatBrackets(f.pattern, formatInfo(identifier))

	if service.GetExt(url) == service.ExtensionZIP {
		if err := downloadZipWithAuth(ctx, url, localDir, identifier, f.Name(), f.user, f.pword, "Authorization", f.token, false); err != nil {
			return fmt.Errorf("HTTPFetcher.%w", err)
		}
		return nil
	}

	localFile := destFilePath(localDir, url, service.NoExtension)
	if err := downloadFileWithAuth(ctx, url, localFile, f.Name()+":"+identifier, f.user, f.pword, "Authorization", f.token, false); err != nil {
		return fmt.Errorf("HTTPFetcher.%w", err)
	}
	return nil
}
