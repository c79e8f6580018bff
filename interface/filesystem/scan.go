package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/extraction"
	"github.com/eoarchive/data-access/interface/catalog"
	"golang.org/x/sync/errgroup"
)

// scanJob is one detected data set waiting for extraction
type scanJob struct {
	index     int
	extractor extraction.Extractor
	path      string
}

// wildcardRegexp compiles a blob pattern, replacing "*" by ".*" and "?" by "."
func wildcardRegexp(blob string) (*regexp.Regexp, error) {
	blobRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(blob), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(blobRe)
	if err != nil {
		return nil, fmt.Errorf("wildcardRegexp: %w", err)
	}
	return re, nil
}

// scanTree walks root and derives a record for every data set an extractor
// recognizes. A recognized directory is one data set, it is not descended
// into. Extraction runs on a bounded worker pool; per-item failures are
// collected as faults.
func scanTree(ctx context.Context, root string, pattern *regexp.Regexp, provision *extraction.Provision, skipDir func(name string) bool) ([]common.DataSetMetaInfo, []catalog.Fault, error) {
	var jobs []scanJob
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() && skipDir != nil && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		extractor, ok := provision.Detect(path)
		if !ok {
			return nil
		}
		matched := pattern == nil || pattern.MatchString(filepath.ToSlash(path))
		if matched {
			jobs = append(jobs, scanJob{index: len(jobs), extractor: extractor, path: path})
		}
		if d.IsDir() {
			// the directory is the data set
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("Scan.walk: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil, nil
	}

	records := make([]*common.DataSetMetaInfo, len(jobs))
	faults := make([]*catalog.Fault, len(jobs))

	wg, ctx := errgroup.WithContext(ctx)
	jobChan := make(chan scanJob, len(jobs))

	// Start 10 workers
	for i := 0; i < 10 && i < len(jobs); i++ {
		wg.Go(func() error { return scanWorker(ctx, jobChan, records, faults) })
	}

	// Push jobs
	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	// Wait
	if err := wg.Wait(); err != nil {
		return nil, nil, fmt.Errorf("Scan.%w", err)
	}

	results := make([]common.DataSetMetaInfo, 0, len(jobs))
	var reported []catalog.Fault
	for i := range jobs {
		if records[i] != nil {
			results = append(results, *records[i])
		}
		if faults[i] != nil {
			reported = append(reported, *faults[i])
		}
	}
	return results, reported, nil
}

func scanWorker(ctx context.Context, jobChan <-chan scanJob, records []*common.DataSetMetaInfo, faults []*catalog.Fault) error {
	for job := range jobChan {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := job.extractor.Extract(job.path)
		if err != nil {
			// one unreadable data set must not abort the scan
			faults[job.index] = &catalog.Fault{Identifier: job.path, Reason: err.Error()}
			continue
		}
		records[job.index] = &info
	}
	return nil
}
