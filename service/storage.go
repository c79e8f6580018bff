package service

import (
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage"
	"github.com/airbusgeo/geocube/interface/storage/uri"
	"github.com/mholt/archiver"
)

// Extension of a data set file
type Extension string

// Some common extensions
const (
	NoExtension     Extension = "" // The file has no extension
	ExtensionGTiff  Extension = "tif"
	ExtensionZIP    Extension = "zip"
	ExtensionNetCDF Extension = "nc"
	ExtensionHDF    Extension = "hdf"
)

// ErrFileNotFound is an error returned by ImportDataSet or DeleteDataSet
type ErrFileNotFound struct {
	File string
}

func (e ErrFileNotFound) Error() string {
	return fmt.Sprintf("File not found: %s", e.File)
}

func isErrNotFound(err error) bool {
	var epath *os.PathError
	return errors.Is(err, gstorage.ErrObjectNotExist) ||
		(errors.As(err, &epath) && os.IsNotExist(epath))
}

// Archive is a service to store and retrieve data sets from a remote storage.
// Data sets are addressed by their relative path in the archive. Directory
// data sets are stored as a zip file.
type Archive interface {
	// SaveDataSet persists the local file or directory into the storage and returns the uri
	SaveDataSet(ctx context.Context, relPath, localPath string) (string, error)
	// ImportDataSet imports the data set from the storage to the given localDir
	// Raise ErrFileNotFound
	ImportDataSet(ctx context.Context, relPath, localDir string) error
	// DeleteDataSet deletes the data set from the storage
	// Raise ErrFileNotFound
	DeleteDataSet(ctx context.Context, relPath string) error
}

// ArchiveStrategy implements Archive using geocube.Strategy
type ArchiveStrategy struct {
	storage storage.Strategy
	uri     uri.DefaultUri
}

// NewArchiveStrategy creates a new ArchiveStrategy
func NewArchiveStrategy(ctx context.Context, storageURI string) (*ArchiveStrategy, error) {
	uri, err := uri.ParseUri(storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewArchiveStrategy.ParseURI: %w", err)
	}

	storageClient, err := uri.NewStorageStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewArchiveStrategy: %w", err)
	}

	return &ArchiveStrategy{storage: storageClient, uri: uri}, nil
}

// SaveDataSet implements Archive
func (as *ArchiveStrategy) SaveDataSet(ctx context.Context, relPath, localPath string) (string, error) {
	src := localPath

	fi, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("SaveDataSet.Stat: %w", err)
	}

	if fi.IsDir() {
		// Zip the directory
		dst := filepath.Join(os.TempDir(), filepath.Base(localPath)+"."+string(ExtensionZIP))
		zipper := archiver.NewZip()
		zipper.CompressionLevel = flate.BestSpeed
		zipper.OverwriteExisting = true
		if err := zipper.Archive([]string{localPath}, dst); err != nil {
			return "", fmt.Errorf("SaveDataSet.Archive: %w", err)
		}
		defer os.Remove(dst)

		src = dst
		relPath = WithExt(relPath, ExtensionZIP)
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("SaveDataSet.Open: %w", err)
	}
	defer f.Close()

	dst := as.getPath(relPath)
	if err := as.storage.UploadFile(ctx, dst, f); err != nil {
		return "", fmt.Errorf("SaveDataSet.UploadFile to %s: %w", dst, err)
	}

	return dst, nil
}

// ImportDataSet implements Archive
func (as *ArchiveStrategy) ImportDataSet(ctx context.Context, relPath, localDir string) error {
	srcFile := as.getPath(relPath)
	dstFile := path.Join(localDir, path.Base(relPath))
	zipped := false

	if err := as.storage.DownloadToFile(ctx, srcFile, dstFile); err != nil {
		if !isErrNotFound(err) {
			return fmt.Errorf("ImportDataSet.DownloadToFile from %s: %w", srcFile, err)
		}
		// Directory data sets are stored zipped
		srcFile = WithExt(srcFile, ExtensionZIP)
		dstFile = WithExt(dstFile, ExtensionZIP)
		zipped = true
		if err := as.storage.DownloadToFile(ctx, srcFile, dstFile); err != nil {
			if isErrNotFound(err) {
				return ErrFileNotFound{as.getPath(relPath)}
			}
			return fmt.Errorf("ImportDataSet.DownloadToFile from %s: %w", srcFile, err)
		}
	}

	if zipped && GetExt(relPath) != ExtensionZIP {
		defer os.Remove(dstFile)
		tmpDir, err := os.MkdirTemp(localDir, "import")
		if err != nil {
			return fmt.Errorf("ImportDataSet.MkdirTemp: %w", err)
		}
		defer os.RemoveAll(tmpDir)
		zip := archiver.Zip{OverwriteExisting: true, MkdirAll: true}
		if err := zip.Unarchive(dstFile, tmpDir); err != nil {
			return fmt.Errorf("ImportDataSet.Unarchive: %w", err)
		}

		// A zipped directory contains itself as single entry
		dstDir := path.Join(localDir, path.Base(relPath))
		srcDir := tmpDir
		if _, err = os.Stat(path.Join(tmpDir, path.Base(relPath))); err == nil {
			srcDir = path.Join(tmpDir, path.Base(relPath))
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("ImportDataSet.Stat: %w", err)
		}
		if err := os.Rename(srcDir, dstDir); err != nil {
			return fmt.Errorf("ImportDataSet.Rename: %w", err)
		}
	}

	return nil
}

// DeleteDataSet implements Archive
func (as *ArchiveStrategy) DeleteDataSet(ctx context.Context, relPath string) error {
	file := as.getPath(relPath)
	if err := as.storage.Delete(ctx, file); err != nil {
		if !isErrNotFound(err) {
			return fmt.Errorf("DeleteDataSet.Delete: %w", err)
		}
		if err := as.storage.Delete(ctx, WithExt(file, ExtensionZIP)); err != nil {
			if isErrNotFound(err) {
				return ErrFileNotFound{file}
			}
			return fmt.Errorf("DeleteDataSet.Delete: %w", err)
		}
	}

	return nil
}

// getPath returns the storage path of the data set
func (as *ArchiveStrategy) getPath(relPath string) string {
	uri := as.uri.String()
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri + strings.TrimLeft(relPath, "/")
}

// WithExt replaces the extension of filePath
func WithExt(filePath string, ext Extension) string {
	filePath = strings.TrimSuffix(filePath, filepath.Ext(filePath))
	if ext != "" {
		return fmt.Sprintf("%s.%s", filePath, string(ext))
	}
	return filePath
}

// GetExt returns the extension of filePath (NoExtension if it has none)
func GetExt(filePath string) Extension {
	if ext := path.Ext(filePath); ext != "" {
		return Extension(ext[1:])
	}
	return NoExtension
}
