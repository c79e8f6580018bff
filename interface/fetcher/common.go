package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service"
	"github.com/eoarchive/data-access/service/log"
	"github.com/mholt/archiver"
)

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

// Progress reports the advancement of a transfer of known size
type Progress struct {
	ctx         context.Context
	prefix      string
	size        int64
	transferred int64
	step        float64
	next        float64
}

func NewProgress(ctx context.Context, prefix string, size int64, percentStep float64) *Progress {
	return &Progress{ctx: ctx, prefix: prefix, size: size, step: percentStep, next: percentStep}
}

func (p *Progress) UpdateDelta(delta int64) {
	transferred := atomic.AddInt64(&p.transferred, delta)
	if p.size <= 0 {
		return
	}
	if progress := 100 * float64(transferred) / float64(p.size); progress >= p.next {
		log.Logger(p.ctx).Sugar().Debugf("%s: %.2f%% %s/%s", p.prefix, progress, fmtBytes(transferred), fmtBytes(p.size))
		p.next = progress + p.step
	}
}

// WriteCounter counts the number of bytes written to it. It implements to the io.Writer interface
// and we can pass this into io.TeeReader() which will report progress on each write cycle.
type WriteCounter struct {
	Progress *Progress
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Progress.UpdateDelta(int64(n))
	return n, nil
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Add("Authorization", auth[0])
	}
	return nil
}

// download a file with display every 5%
func download(ctx context.Context, req *grab.Request, displayPrefix string, copyAuthOnRedirect bool) error {
	client := grab.NewClient()
	if copyAuthOnRedirect {
		client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	}
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch resp.HTTPResponse.StatusCode {
		case 404, 410:
			return ErrDataSetNotFound{req.URL().String()}
		case 408, 429, 500, 501, 502, 503, 504:
			return service.MakeTemporary(err)
		default:
			return err
		}
	}
	return nil
}

func downloadFileWithAuth(ctx context.Context, url, localFile, displayPrefix string, user, pword *string, headerKey string, headerValue *string, copyAuthOnRedirect bool) error {
	req, err := grab.NewRequest(localFile, url)
	if err != nil {
		return fmt.Errorf("downloadFileWithAuth.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)

	// If Basic Auth
	if user != nil && pword != nil {
		req.HTTPRequest.SetBasicAuth(*user, *pword)
	}

	// If key/val Auth
	if headerValue != nil {
		req.HTTPRequest.Header.Add(headerKey, *headerValue)
	}

	if err := download(ctx, req, displayPrefix, copyAuthOnRedirect); err != nil {
		return fmt.Errorf("downloadFileWithAuth.%w", err)
	}
	return nil
}

func downloadZipWithAuth(ctx context.Context, url, localDir, identifier, fetcher string, user, pword *string, headerKey string, headerValue *string, copyAuthOnRedirect bool) error {
	localZip := destFilePath(localDir, identifier, service.ExtensionZIP)
	if err := downloadFileWithAuth(ctx, url, localZip, fetcher+":"+identifier, user, pword, headerKey, headerValue, copyAuthOnRedirect); err != nil {
		return fmt.Errorf("downloadZipWithAuth.%w", err)
	}

	defer os.Remove(localZip)
	if err := unarchive(localZip, localDir); err != nil {
		return fmt.Errorf("downloadZipWithAuth.Unarchive: %w", err)
	}
	return nil
}

// unarchive file with basic check. All errors are temporary.
func unarchive(localZip, localDir string) error {
	tmpdir, err := os.MkdirTemp(localDir, filepath.Base(localZip))
	if err != nil {
		return service.MakeTemporary(err)
	}
	defer os.RemoveAll(tmpdir)
	if err := archiver.Unarchive(localZip, tmpdir); err != nil {
		return service.MakeTemporary(err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return service.MakeTemporary(err)
	}
	if len(files) == 0 {
		return service.MakeTemporary(fmt.Errorf("empty zip"))
	}
	for _, f := range files {
		os.Rename(filepath.Join(tmpdir, f.Name()), filepath.Join(localDir, f.Name()))
	}
	return nil
}

// destFilePath returns the path of the data set, given the directory and the identifier
func destFilePath(dir, identifier string, ext service.Extension) string {
	name := path.Base(strings.TrimRight(identifier, "/"))
	if ext == service.NoExtension || service.GetExt(name) == ext {
		return path.Join(dir, name)
	}
	return path.Join(dir, name+"."+string(ext))
}

// formatInfo returns the replacements available to fetcher path patterns for
// the given identifier (see common.FormatBrackets)
func formatInfo(identifier string) map[string]string {
	format := map[string]string{
		"IDENTIFIER": identifier,
		"BASENAME":   path.Base(strings.TrimRight(identifier, "/")),
	}
	if key, err := common.ParseTileKey(identifier); err == nil {
		for k, v := range key.Info() {
			format[k] = v
		}
	}
	if granule, err := common.ParseModisGranule(path.Base(identifier)); err == nil {
		format["PRODUCT"] = granule.Product
		format["COLLECTION"] = granule.Collection
		format["DATE"] = granule.Acquired.Format("2006.01.02")
	}
	return format
}
