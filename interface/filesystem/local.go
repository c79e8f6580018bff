package filesystem

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/extraction"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/interface/fetcher"
	"github.com/eoarchive/data-access/service"
	"github.com/eoarchive/data-access/service/log"
	"github.com/google/uuid"
)

// LocalArchive serves data sets stored in a directory tree. Identifiers are
// the absolute canonical paths of the data sets. Put places tile data sets
// under their tile-key path and everything else under its basename, so an
// archive populated out-of-band with the same layout reconciles cleanly.
// An optional remote mirror receives a copy of every ingested data set.
type LocalArchive struct {
	path      string
	pattern   *regexp.Regexp
	provision *extraction.Provision
	mirror    service.Archive
	params    map[string]string
}

// NewLocalArchive opens (or creates) the archive rooted at path. pattern
// optionally filters the scanned identifiers (wildcard form); mirrorURI
// optionally names a remote storage receiving a copy of ingested data sets.
func NewLocalArchive(ctx context.Context, path, pattern, mirrorURI string, provision *extraction.Provision) (*LocalArchive, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, service.MakeFatal(fmt.Errorf("NewLocalArchive: %w", err))
	}
	if err := os.MkdirAll(abs, 0766); err != nil {
		return nil, service.MakeFatal(fmt.Errorf("NewLocalArchive: %w", err))
	}
	archive := &LocalArchive{
		path:      abs,
		provision: provision,
		params:    map[string]string{"path": abs, "pattern": pattern},
	}
	if pattern != "" {
		if archive.pattern, err = wildcardRegexp(pattern); err != nil {
			return nil, service.MakeFatal(fmt.Errorf("NewLocalArchive: %w", err))
		}
	}
	if mirrorURI != "" {
		if archive.mirror, err = service.NewArchiveStrategy(ctx, mirrorURI); err != nil {
			return nil, service.MakeFatal(fmt.Errorf("NewLocalArchive: %w", err))
		}
		archive.params["mirror"] = mirrorURI
	}
	if archive.provision == nil {
		archive.provision = extraction.NewProvision()
	}
	return archive, nil
}

func (a *LocalArchive) Name() string {
	return "Local[" + a.path + "]"
}

func (a *LocalArchive) Parameters() map[string]string {
	return a.params
}

// Scan implements FileSystem
func (a *LocalArchive) Scan(ctx context.Context) ([]common.DataSetMetaInfo, []catalog.Fault, error) {
	return scanTree(ctx, a.path, a.pattern, a.provision, nil)
}

// Open implements FileSystem. The archive is the primary copy, so resolving
// is a stat of the identifier path.
func (a *LocalArchive) Open(ctx context.Context, info common.DataSetMetaInfo) (common.FileRef, error) {
	if _, err := os.Stat(info.Identifier); err != nil {
		if os.IsNotExist(err) {
			return common.FileRef{}, fetcher.ErrDataSetNotFound{DataSet: info.Identifier}
		}
		return common.FileRef{}, fmt.Errorf("Open: %w", err)
	}
	return common.FileRefFor(info, info.Identifier), nil
}

// Put ingests the raw data at sourcePath into the canonical layout and
// returns the record derived from the archived copy
func (a *LocalArchive) Put(ctx context.Context, sourcePath string) (common.DataSetMetaInfo, error) {
	extractor, ok := a.provision.Detect(sourcePath)
	if !ok {
		return common.DataSetMetaInfo{}, extraction.ErrUnparseable{Source: sourcePath, Reason: "no extractor recognizes this data set"}
	}
	rel := a.provision.RelativeArchivePath(extractor.Name(), sourcePath)
	if rel == "" {
		rel = filepath.Base(strings.TrimRight(sourcePath, "/"))
	}
	dest := filepath.Join(a.path, filepath.FromSlash(rel))

	// temp sibling then rename, a reader never sees a partial data set
	tmp := dest + ".ingest-" + uuid.New().String()
	if err := copyAll(sourcePath, tmp); err != nil {
		os.RemoveAll(tmp)
		return common.DataSetMetaInfo{}, fmt.Errorf("Put: %w", err)
	}
	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(tmp)
		return common.DataSetMetaInfo{}, fmt.Errorf("Put: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.RemoveAll(tmp)
		return common.DataSetMetaInfo{}, fmt.Errorf("Put: %w", err)
	}

	info, err := extractor.Extract(dest)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Put.%w", err)
	}

	if a.mirror != nil {
		if _, err := a.mirror.SaveDataSet(ctx, rel, dest); err != nil {
			log.Logger(ctx).Sugar().Warnf("mirror save of %s failed: %v", rel, err)
		}
	}
	return info, nil
}

// Remove implements WritableFileSystem
func (a *LocalArchive) Remove(ctx context.Context, info common.DataSetMetaInfo) error {
	rel, err := filepath.Rel(a.path, info.Identifier)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("Remove: %s is not a data set of the archive %s", info.Identifier, a.path)
	}
	if _, err := os.Stat(info.Identifier); err != nil {
		if os.IsNotExist(err) {
			return fetcher.ErrDataSetNotFound{DataSet: info.Identifier}
		}
		return fmt.Errorf("Remove: %w", err)
	}
	if err := os.RemoveAll(info.Identifier); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}
	if a.mirror != nil {
		if err := a.mirror.DeleteDataSet(ctx, filepath.ToSlash(rel)); err != nil {
			log.Logger(ctx).Sugar().Warnf("mirror delete of %s failed: %v", rel, err)
		}
	}
	return nil
}

// ClearCache implements FileSystem. The archive is the primary copy, there
// is nothing cached to reclaim.
func (a *LocalArchive) ClearCache(ctx context.Context) error {
	return nil
}

// NotifyRegistered implements FileSystem
func (a *LocalArchive) NotifyRegistered(ctx context.Context, info common.DataSetMetaInfo) error {
	return nil
}

// copyAll copies a file or a directory tree
func copyAll(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return copyFile(src, dst, fi.Mode())
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0766)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0766); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
