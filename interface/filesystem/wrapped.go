package filesystem

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/extraction"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/interface/fetcher"
	"github.com/eoarchive/data-access/service"
	"github.com/eoarchive/data-access/service/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// scratchDir is the cache subdirectory holding in-flight fetches
const scratchDir = ".fetching"

// LocallyWrapped adds local cache semantics over a remote backend that
// cannot be read with low latency. The first Open of an identifier fetches
// its files into a scratch directory and promotes them to a canonical path
// under the cache root with a rename; later Opens resolve with a stat and no
// network access. The cache holds nothing the layout does not encode: the
// catalog stays the source of truth for what exists.
type LocallyWrapped struct {
	name      string
	cacheDir  string
	fetcher   fetcher.Fetcher
	layout    func(identifier string) string
	provision *extraction.Provision
	params    map[string]string
	group     singleflight.Group
}

// NewLocallyWrapped wraps f with a cache rooted at cacheDir. layout maps an
// identifier to its canonical relative path in the cache, nil for the
// basename layout. params are echoed by Parameters().
func NewLocallyWrapped(cacheDir string, f fetcher.Fetcher, layout func(identifier string) string, provision *extraction.Provision, params map[string]string) (*LocallyWrapped, error) {
	abs, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, service.MakeFatal(fmt.Errorf("NewLocallyWrapped: %w", err))
	}
	if err := os.MkdirAll(abs, 0766); err != nil {
		return nil, service.MakeFatal(fmt.Errorf("NewLocallyWrapped: %w", err))
	}
	if layout == nil {
		layout = defaultLayout
	}
	if provision == nil {
		provision = extraction.NewProvision()
	}
	return &LocallyWrapped{
		name:      "LocallyWrapped[" + f.Name() + "]",
		cacheDir:  abs,
		fetcher:   f,
		layout:    layout,
		provision: provision,
		params:    params,
	}, nil
}

// defaultLayout caches a data set under the basename of its identifier,
// without the archive extension
func defaultLayout(identifier string) string {
	base := path.Base(strings.TrimRight(identifier, "/"))
	if service.GetExt(base) == service.ExtensionZIP {
		base = strings.TrimSuffix(base, "."+string(service.ExtensionZIP))
	}
	return base
}

// TileKeyLayout lays the cache out by tile key (29/S/QB/2017/9/4/0), the
// canonical layout of sentinel tile archives
func TileKeyLayout(identifier string) string {
	if part := common.TileKeyPart(identifier); part != "" {
		return part
	}
	return defaultLayout(identifier)
}

func (w *LocallyWrapped) Name() string {
	return w.name
}

func (w *LocallyWrapped) Parameters() map[string]string {
	return w.params
}

func (w *LocallyWrapped) canonicalPath(identifier string) string {
	return filepath.Join(w.cacheDir, filepath.FromSlash(w.layout(identifier)))
}

// Open implements FileSystem. A cache hit resolves with a stat and zero
// fetches; concurrent Opens of one uncached identifier share a single fetch.
func (w *LocallyWrapped) Open(ctx context.Context, info common.DataSetMetaInfo) (common.FileRef, error) {
	canonical := w.canonicalPath(info.Identifier)
	if _, err := os.Stat(canonical); err == nil {
		return common.FileRefFor(info, canonical), nil
	}
	if _, err, _ := w.group.Do(info.Identifier, func() (interface{}, error) {
		return nil, w.fetch(ctx, info.Identifier, canonical)
	}); err != nil {
		return common.FileRef{}, err
	}
	return common.FileRefFor(info, canonical), nil
}

func (w *LocallyWrapped) fetch(ctx context.Context, identifier, canonical string) error {
	if _, err := os.Stat(canonical); err == nil {
		// completed by the flight this call merged with
		return nil
	}
	scratch := filepath.Join(w.cacheDir, scratchDir, sanitizeIdentifier(identifier)+"-"+uuid.New().String())
	if err := os.MkdirAll(scratch, 0766); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			// cleanup must never mask the fetch outcome
			log.Logger(ctx).Sugar().Warnf("cleanup of %s failed: %v", scratch, err)
		}
	}()

	if err := w.fetcher.Fetch(ctx, identifier, scratch); err != nil {
		return fmt.Errorf("fetch %s: %w", identifier, err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("fetch %s: the fetcher delivered no files", identifier)
	}
	content := scratch
	if len(entries) == 1 {
		// a single file or directory is the data set itself
		content = filepath.Join(scratch, entries[0].Name())
	}

	if err := os.MkdirAll(filepath.Dir(canonical), 0766); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if _, err := os.Stat(canonical); err == nil {
		// another process promoted its copy first, keep it
		return nil
	}
	if err := os.Rename(content, canonical); err != nil {
		return fmt.Errorf("fetch.promote: %w", err)
	}
	return nil
}

// Scan implements FileSystem. A remote backend cannot be enumerated without
// fetching, so the scan covers the locally cached data sets only.
func (w *LocallyWrapped) Scan(ctx context.Context) ([]common.DataSetMetaInfo, []catalog.Fault, error) {
	return scanTree(ctx, w.cacheDir, nil, w.provision, func(name string) bool { return name == scratchDir })
}

// List enumerates the identifiers the remote backend offers, when the
// fetcher supports listing
func (w *LocallyWrapped) List(ctx context.Context) ([]string, error) {
	lister, ok := w.fetcher.(fetcher.Lister)
	if !ok {
		return nil, ErrNotFound{Type: "remote listing", ID: w.name}
	}
	identifiers, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("List.%w", err)
	}
	return identifiers, nil
}

// ClearCache implements FileSystem. It reclaims the whole cache root; the
// remote data and the catalog are untouched.
func (w *LocallyWrapped) ClearCache(ctx context.Context) error {
	if err := os.RemoveAll(w.cacheDir); err != nil {
		return fmt.Errorf("ClearCache: %w", err)
	}
	if err := os.MkdirAll(w.cacheDir, 0766); err != nil {
		return fmt.Errorf("ClearCache: %w", err)
	}
	return nil
}

// NotifyRegistered implements FileSystem. Once a record is durably
// registered, scratch directories left behind by crashed fetches of the same
// identifier are purged. The canonical cache entry survives.
func (w *LocallyWrapped) NotifyRegistered(ctx context.Context, info common.DataSetMetaInfo) error {
	stale, err := filepath.Glob(filepath.Join(w.cacheDir, scratchDir, sanitizeIdentifier(info.Identifier)+"-*"))
	if err != nil {
		return fmt.Errorf("NotifyRegistered: %w", err)
	}
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			log.Logger(ctx).Sugar().Warnf("cleanup of %s failed: %v", dir, err)
		}
	}
	return nil
}

// sanitizeIdentifier makes an identifier safe to use as a single path element
func sanitizeIdentifier(identifier string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, identifier)
	if len(sanitized) > 100 {
		sanitized = sanitized[len(sanitized)-100:]
	}
	return sanitized
}
