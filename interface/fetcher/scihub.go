package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/eoarchive/data-access/service"
	"golang.org/x/oauth2"
)

const (
	scihubTokenURL      = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	scihubSearchProduct = "https://catalogue.dataspace.copernicus.eu/odata/v1/Products?$filter=Name%%20eq%%20'%s'"
	scihubDownload      = "https://catalogue.dataspace.copernicus.eu/odata/v1/Products(%s)/$value"
)

// SciHubFetcher implements Fetcher for the Copernicus data space. Data sets
// are named by product (S2B_MSIL1C_20170904T110619_...), looked up to their
// uuid before download.
type SciHubFetcher struct {
	conf  *oauth2.Config
	user  string
	pword string

	mu     sync.Mutex
	source oauth2.TokenSource
}

// Name implements Fetcher
func (f *SciHubFetcher) Name() string {
	return "SciHub"
}

// NewSciHubFetcher creates a new Fetcher from the Copernicus data space
func NewSciHubFetcher(user, pword string) *SciHubFetcher {
	return &SciHubFetcher{
		conf: &oauth2.Config{
			ClientID: "cdse-public",
			Endpoint: oauth2.Endpoint{TokenURL: scihubTokenURL},
		},
		user:  user,
		pword: pword,
	}
}

// token returns a valid access token, asking or refreshing one if needed
func (f *SciHubFetcher) token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.source == nil {
		token, err := f.conf.PasswordCredentialsToken(ctx, f.user, f.pword)
		if err != nil {
			return "", fmt.Errorf("PasswordCredentialsToken: %w", err)
		}
		f.source = f.conf.TokenSource(context.Background(), token)
	}
	token, err := f.source.Token()
	if err != nil {
		return "", fmt.Errorf("Token: %w", err)
	}
	return token.AccessToken, nil
}

// uuid looks up the uuid of a product name
func (f *SciHubFetcher) uuid(productName string) (string, error) {
	body, err := service.GetBodyRetry(fmt.Sprintf(scihubSearchProduct, url.QueryEscape(productName)), 3)
	if err != nil {
		return "", fmt.Errorf("uuid.%w", err)
	}

	products := struct {
		Value []struct {
			Id string `json:"Id"`
		} `json:"value"`
	}{}
	if err := json.Unmarshal(body, &products); err != nil {
		return "", fmt.Errorf("uuid.Unmarshal [%s]: %w", body, err)
	}
	if len(products.Value) == 0 {
		return "", ErrDataSetNotFound{productName}
	}
	return products.Value[0].Id, nil
}

// Fetch implements Fetcher
func (f *SciHubFetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	uuid, err := f.uuid(identifier)
	if err != nil {
		return fmt.Errorf("SciHubFetcher.%w", err)
	}

	accessToken, err := f.token(ctx)
	if err != nil {
		return fmt.Errorf("SciHubFetcher.%w", err)
	}

	url := fmt.Sprintf(scihubDownload, uuid)
	bearer := "Bearer " + accessToken
	if err := downloadZipWithAuth(ctx, url, localDir, identifier, f.Name(), nil, nil, "Authorization", &bearer, true); err != nil {
		return fmt.Errorf("SciHubFetcher.%w", err)
	}
	return nil
}
