package fetcher

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage/gcs"
	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
	"google.golang.org/api/iterator"
)

// GSFetcher implements Fetcher for Google Storage buckets
// pattern is a gs url that can contain several {IDENTIFIER} replaced
// according to the information found in the identifier (see formatInfo), e.g.
// gs://gcp-public-data-sentinel-2/tiles/{ZONE}{LATITUDE_BAND}{GRID_SQUARE}/{BASENAME}
type GSFetcher struct {
	pattern string
}

// Name implements Fetcher
func (f *GSFetcher) Name() string {
	return "GoogleStorage"
}

// NewGSFetcher creates a new Fetcher from a Google Storage bucket pattern
func NewGSFetcher(pattern string) *GSFetcher {
	return &GSFetcher{pattern: pattern}
}

func findBlob(ctx context.Context, url string) (string, error) {
	// Find the first blob that matches the url pattern
	bucket, blob, err := gcs.Parse(url)
	if err != nil {
		return "", err
	}
	gsClient, err := storage.NewClient(ctx)
	if err != nil {
		return "", err
	}
	// Create a regexp from blob, replacing "*" by ".*" and "?" by "."
	blobRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(blob), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(blobRe)
	if err != nil {
		return "", fmt.Errorf("compile[%s]: %w", blobRe, err)
	}
	// Extract the prefix
	if i := strings.Index(blob, "*"); i != -1 {
		blob = blob[:i]
	}
	// Find all the blobs that match the prefix
	it := gsClient.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: blob})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", fmt.Errorf("list[%s/%s*]: %w", bucket, blob, err)
		}
		if idx := re.FindIndex([]byte(attrs.Name)); idx != nil && idx[0] == 0 {
			return "gs://" + bucket + "/" + attrs.Name[:idx[1]], nil
		}
	}
	return url, ErrDataSetNotFound{url}
}

// Fetch implements Fetcher
func (f *GSFetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	url := common.FormatBrackets(f.pattern, formatInfo(identifier))
	var err error
	if strings.Contains(url, "*") {
		if url, err = findBlob(ctx, url); err != nil {
			return fmt.Errorf("GSFetcher: %w", err)
		}
	}
	if service.GetExt(url) == service.ExtensionZIP {
		if err := f.fetchZip(ctx, url, localDir); err != nil {
			return fmt.Errorf("GSFetcher[%s].%w", url, err)
		}
	} else if files, err := f.fetchDirectory(ctx, url, localDir); err != nil {
		return fmt.Errorf("GSFetcher[%s].%w", url, err)
	} else if len(files) == 0 {
		return ErrDataSetNotFound{identifier}
	}
	return nil
}

// List implements Lister, enumerating the identifiers below the fixed prefix
// of the pattern
func (f *GSFetcher) List(ctx context.Context) ([]string, error) {
	url := f.pattern
	if i := strings.IndexAny(url, "{*?"); i != -1 {
		url = url[:i]
	}
	bucket, prefix, err := gcs.Parse(url)
	if err != nil {
		return nil, fmt.Errorf("GSFetcher.List: %w", err)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("GSFetcher.List: %w", err)
	}
	q := &storage.Query{Prefix: prefix, Versions: false}
	q.SetAttrSelection([]string{"Name"})

	identifiers := service.StringSet{}
	it := client.Bucket(bucket).Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GSFetcher.List[%s/%s]: %w", bucket, prefix, err)
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if i := strings.Index(name, "/"); i != -1 {
			name = name[:i]
		}
		if name != "" {
			identifiers.Push(name)
		}
	}
	return identifiers.Slice(), nil
}

// fetchDirectory fetches all objects prefixed by uri to destination
// It returns the list of absolute filenames that were created (i.e with the destination prefix)
func (f *GSFetcher) fetchDirectory(ctx context.Context, uri string, dstDir string) (files []string, err error) {
	defer func() {
		if err != nil {
			err = service.MakeTemporary(err)
		}
	}()

	gs, err := gcs.NewGsStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchDirectory: %w", err)
	}

	bucket, prefix, err := gcs.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("fetchDirectory: %w", err)
	}
	if len(bucket) == 0 {
		return nil, fmt.Errorf("missing bucket")
	}
	prefix = strings.TrimRight(prefix, "/")
	if dstDir == "" {
		dstDir, err = os.MkdirTemp("", "gcs")
		if err != nil {
			return nil, fmt.Errorf("os.MkdirTemp: %w", err)
		}
	}
	type gsUriToDownload struct {
		bucket, object string
		file           string
	}
	downloads := make(chan gsUriToDownload)
	ctx, cncl := context.WithCancel(ctx)
	defer cncl()
	wg := sync.WaitGroup{}
	concurrency := 5
	wg.Add(concurrency)
	filemu := sync.Mutex{}
	for worker := 0; worker < concurrency; worker++ {
		go func(i int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case uri, ok := <-downloads:
					if !ok {
						return
					}
					if err = gs.DownloadToFile(ctx, uri.bucket+"/"+uri.object, uri.file); err != nil {
						return
					}
					filemu.Lock()
					files = append(files, uri.file)
					filemu.Unlock()
				}
			}
		}(worker)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	q := &storage.Query{Prefix: prefix, Versions: false}
	q.SetAttrSelection([]string{"Name"})
	it := client.Bucket(bucket).Objects(ctx, q)
	for {
		objectAttrs, iterr := it.Next()
		if iterr == iterator.Done {
			break
		}
		if iterr != nil {
			close(downloads)
			return nil, fmt.Errorf("bucket iterate: %w", iterr)
		}
		if objectAttrs.Prefix != "" {
			mkdir := filepath.Join(dstDir, objectAttrs.Prefix)
			ferr := os.MkdirAll(mkdir, 0766)
			if ferr != nil {
				close(downloads)
				return nil, fmt.Errorf("mkdirall %s: %w", mkdir, ferr)
			}
		} else {
			filename := objectAttrs.Name
			if strings.HasPrefix(objectAttrs.Name, prefix) {
				filename = objectAttrs.Name[len(prefix):]
			}
			if len(filename) > 0 && filename[len(filename)-1] == '/' {
				continue
			}
			dirname := filepath.Join(dstDir, filepath.Dir(filename))
			ferr := os.MkdirAll(dirname, 0766)
			if ferr != nil {
				close(downloads)
				return nil, fmt.Errorf("mkdirall %s: %w", dirname, ferr)
			}
			filename = filepath.Join(dstDir, filename)
			downloads <- gsUriToDownload{
				bucket: bucket,
				object: objectAttrs.Name,
				file:   filename,
			}
		}
	}
	close(downloads)
	wg.Wait()
	return
}

// fetchZip to destination
func (f *GSFetcher) fetchZip(ctx context.Context, uri string, dstDir string) error {
	gs, err := gcs.NewGsStrategy(ctx)
	if err != nil {
		return fmt.Errorf("fetchZip.NewGsStrategy: %w", err)
	}
	localZip := path.Join(dstDir, filepath.Base(uri))
	if err := gs.DownloadToFile(ctx, uri, localZip); err != nil {
		return fmt.Errorf("fetchZip.%w", err)
	}
	defer os.Remove(localZip)
	if err := unarchive(localZip, dstDir); err != nil {
		return service.MakeTemporary(fmt.Errorf("fetchZip.Unarchive: %w", err))
	}
	return nil
}
