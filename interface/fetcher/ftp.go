package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
	"github.com/jlaffaye/ftp"
)

// FTPFetcher implements Fetcher for connection to FTP
type FTPFetcher struct {
	hote        string
	pathPattern string
	user        string
	pword       string
	tls         bool
}

// Name implements Fetcher
func (f *FTPFetcher) Name() string {
	return "FTP"
}

// NewFTPFetcher creates a new Fetcher for ftp download link
// Example:
// pathPattern: full ftp path, including hote, port and folder tree. i.e: ftp://ftp.example.org:21/cams/{BASENAME}  (See github.com/eoarchive/data-access/common : FormatBrackets)
func NewFTPFetcher(pathPattern, user, pword string) *FTPFetcher {
	pathPattern = strings.TrimPrefix(pathPattern, "ftp://")
	splits := strings.SplitN(pathPattern, "/", 2)
	if len(splits) == 1 {
		splits = append(splits, "{BASENAME}")
	}
	splitHote := strings.SplitN(splits[0], ":", 2)
	tls := len(splitHote) == 2 && splitHote[1] == "990"

	return &FTPFetcher{
		hote:        splits[0],
		tls:         tls,
		pathPattern: splits[1],
		user:        user,
		pword:       pword,
	}
}

func (f *FTPFetcher) connect() (*ftp.ServerConn, error) {
	ftpOption := []ftp.DialOption{ftp.DialWithTimeout(5 * time.Second)}
	if f.tls {
		ftpOption = append(ftpOption, ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := ftp.Dial(f.hote, ftpOption...)
	if err != nil {
		return nil, fmt.Errorf("Dial: %w", err)
	}
	if err = c.Login(f.user, f.pword); err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}
	return c, nil
}

// Fetch implements Fetcher
func (f *FTPFetcher) Fetch(ctx context.Context, identifier, localDir string) error {
	path := common.FormatBrackets(f.pathPattern, formatInfo(identifier))

	// Connection to FTP
	c, err := f.connect()
	if err != nil {
		return fmt.Errorf("FTPFetcher.%w", err)
	}
	defer c.Quit()

	// Get file size
	s, _ := c.FileSize(path)

	// Get file stream
	r, err := c.Retr(path)
	if err != nil {
		return fmt.Errorf("FTPFetcher.Retr: %w", err)
	}
	defer r.Close()

	// Download to local file
	localFile := destFilePath(localDir, path, service.NoExtension)
	destFile, err := os.Create(localFile)
	if err != nil {
		return fmt.Errorf("FTPFetcher.Create: %w", err)
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, io.TeeReader(r, &WriteCounter{Progress: NewProgress(ctx, "Ftp", s, 5)}))
	if err != nil {
		os.Remove(localFile)
		return fmt.Errorf("FTPFetcher.Copy: %w", err)
	}

	// Unarchive
	if service.GetExt(localFile) == service.ExtensionZIP {
		defer os.Remove(localFile)
		if err := unarchive(localFile, localDir); err != nil {
			return service.MakeTemporary(fmt.Errorf("FTPFetcher.Unarchive: %w", err))
		}
	}
	return nil
}

// List implements Lister, enumerating the files of the pattern directory
func (f *FTPFetcher) List(ctx context.Context) ([]string, error) {
	dir := f.pathPattern
	if i := strings.LastIndex(dir, "/"); i != -1 {
		dir = dir[:i]
	} else {
		dir = ""
	}

	c, err := f.connect()
	if err != nil {
		return nil, fmt.Errorf("FTPFetcher.%w", err)
	}
	defer c.Quit()

	entries, err := c.List(dir)
	if err != nil {
		return nil, fmt.Errorf("FTPFetcher.List: %w", err)
	}

	var identifiers []string
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFile || e.Type == ftp.EntryTypeFolder {
			if e.Name != "." && e.Name != ".." {
				identifiers = append(identifiers, e.Name)
			}
		}
	}
	return identifiers, nil
}
