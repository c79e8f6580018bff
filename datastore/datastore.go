// Package datastore binds the file system of a store to its catalog
// provider and exposes the operations of the service: query records, resolve
// them to local files, ingest new data sets and reconcile the catalog with
// the backend.
package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/interface/fetcher"
	"github.com/eoarchive/data-access/interface/filesystem"
	"github.com/eoarchive/data-access/service/geometry"
	"github.com/eoarchive/data-access/service/log"
	"golang.org/x/sync/errgroup"
)

// ErrReadOnly is returned by the mutating operations of a store whose file
// system or provider lacks the write capability
type ErrReadOnly struct {
	Store string
}

func (e ErrReadOnly) Error() string {
	return fmt.Sprintf("store is read-only: %s", e.Store)
}

// Resolution is the outcome of resolving one record to a local file. A
// record that fails to resolve carries the reason instead of a reference.
type Resolution struct {
	Identifier string          `json:"identifier"`
	FileRef    *common.FileRef `json:"file_ref,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DataStore is one configured store. Queries go to the provider; resolution,
// ingestion and reconciliation go through the file system. The write
// operations require a WritableFileSystem and a WritableMetaInfoProvider
// and return ErrReadOnly otherwise.
type DataStore struct {
	name     string
	fs       filesystem.FileSystem
	provider catalog.MetaInfoProvider
}

func New(name string, fs filesystem.FileSystem, provider catalog.MetaInfoProvider) *DataStore {
	return &DataStore{name: name, fs: fs, provider: provider}
}

func (s *DataStore) Name() string {
	return s.name
}

// Writable reports whether the store supports Put, Remove and Update
func (s *DataStore) Writable() bool {
	_, fsOK := s.fs.(filesystem.WritableFileSystem)
	_, providerOK := s.provider.(catalog.WritableMetaInfoProvider)
	return fsOK && providerOK
}

// Query returns the catalog records matching q
func (s *DataStore) Query(ctx context.Context, q catalog.Query) ([]common.DataSetMetaInfo, error) {
	return s.provider.Query(ctx, q)
}

// Get returns the record of the identifier
func (s *DataStore) Get(ctx context.Context, identifier string) (common.DataSetMetaInfo, error) {
	return s.provider.Get(ctx, identifier)
}

// All returns every record of the store
func (s *DataStore) All(ctx context.Context) ([]common.DataSetMetaInfo, error) {
	return s.provider.All(ctx)
}

// Coverage returns the union of the coverages matching q ("" when nothing
// matches)
func (s *DataStore) Coverage(ctx context.Context, q catalog.Query) (string, error) {
	records, err := s.provider.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("Coverage.%w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	wkts := make([]string, len(records))
	for i, record := range records {
		wkts[i] = record.Coverage
		if record.IsGlobal() {
			wkts[i] = common.Global
		}
	}
	union, err := geometry.WKTUnion(wkts, geometry.TOLERANCE_GEOG)
	if err != nil {
		return "", fmt.Errorf("Coverage.%w", err)
	}
	return union, nil
}

// QueryAndResolve resolves every record matching q to a local file. A record
// that fails to resolve is reported with its reason, it does not fail the
// others.
func (s *DataStore) QueryAndResolve(ctx context.Context, q catalog.Query) ([]Resolution, error) {
	records, err := s.provider.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("QueryAndResolve.%w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	resolutions := make([]Resolution, len(records))

	wg, ctx := errgroup.WithContext(ctx)
	jobChan := make(chan int, len(records))

	// Start 10 workers
	for i := 0; i < 10 && i < len(records); i++ {
		wg.Go(func() error { return s.resolveWorker(ctx, jobChan, records, resolutions) })
	}

	// Push jobs
	for i := range records {
		jobChan <- i
	}
	close(jobChan)

	// Wait
	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("QueryAndResolve.%w", err)
	}
	return resolutions, nil
}

func (s *DataStore) resolveWorker(ctx context.Context, jobChan <-chan int, records []common.DataSetMetaInfo, resolutions []Resolution) error {
	for index := range jobChan {
		if err := ctx.Err(); err != nil {
			return err
		}
		info := records[index]
		resolutions[index].Identifier = info.Identifier
		ref, err := s.fs.Open(ctx, info)
		if err != nil {
			// one unresolvable data set must not fail the others
			resolutions[index].Error = err.Error()
			continue
		}
		resolutions[index].FileRef = &ref
		s.notifyRegistered(ctx, info)
	}
	return nil
}

// Put ingests the raw data at sourcePath and registers the derived record.
// The two steps are not transactional: when registration fails the data set
// is already ingested and a later Update registers it.
func (s *DataStore) Put(ctx context.Context, sourcePath string) (common.DataSetMetaInfo, error) {
	fs, provider, err := s.writable()
	if err != nil {
		return common.DataSetMetaInfo{}, err
	}
	info, err := fs.Put(ctx, sourcePath)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Put.%w", err)
	}
	if err := provider.Add(ctx, info); err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Put.%w", err)
	}
	s.notifyRegistered(ctx, info)
	return info, nil
}

// Remove deletes the data set and its record. A record whose data set is
// already gone is still removed from the catalog.
func (s *DataStore) Remove(ctx context.Context, identifier string) error {
	fs, provider, err := s.writable()
	if err != nil {
		return err
	}
	info, err := provider.Get(ctx, identifier)
	if err != nil {
		return fmt.Errorf("Remove.%w", err)
	}
	if err := fs.Remove(ctx, info); err != nil {
		var notFound fetcher.ErrDataSetNotFound
		if !errors.As(err, &notFound) {
			return fmt.Errorf("Remove.%w", err)
		}
		log.Logger(ctx).Sugar().Warnf("removing the record of %s, the data set is already gone", identifier)
	}
	if err := provider.Remove(ctx, identifier); err != nil {
		return fmt.Errorf("Remove.%w", err)
	}
	return nil
}

// Update reconciles the catalog with the data sets the file system can
// currently resolve: scanned records absent from the catalog are added,
// catalog records the scan no longer finds are removed. Running it twice in
// a row is a no-op.
func (s *DataStore) Update(ctx context.Context) (catalog.UpdateReport, error) {
	provider, ok := s.provider.(catalog.WritableMetaInfoProvider)
	if !ok {
		return catalog.UpdateReport{}, ErrReadOnly{Store: s.name}
	}
	records, faults, err := s.fs.Scan(ctx)
	if err != nil {
		return catalog.UpdateReport{}, fmt.Errorf("Update.%w", err)
	}
	report, err := catalog.Reconcile(ctx, provider, records, faults)
	if err != nil {
		return catalog.UpdateReport{}, fmt.Errorf("Update.%w", err)
	}
	for _, info := range report.Added {
		s.notifyRegistered(ctx, info)
	}
	return report, nil
}

// ClearCache reclaims the local cache of the store. The remote data and the
// catalog are untouched.
func (s *DataStore) ClearCache(ctx context.Context) error {
	return s.fs.ClearCache(ctx)
}

// RemoteIdentifiers enumerates the identifiers the remote backend of the
// store offers, when it supports listing
func (s *DataStore) RemoteIdentifiers(ctx context.Context) ([]string, error) {
	lister, ok := s.fs.(filesystem.Lister)
	if !ok {
		return nil, filesystem.ErrNotFound{Type: "remote listing", ID: s.name}
	}
	return lister.List(ctx)
}

func (s *DataStore) writable() (filesystem.WritableFileSystem, catalog.WritableMetaInfoProvider, error) {
	fs, ok := s.fs.(filesystem.WritableFileSystem)
	if !ok {
		return nil, nil, ErrReadOnly{Store: s.name}
	}
	provider, ok := s.provider.(catalog.WritableMetaInfoProvider)
	if !ok {
		return nil, nil, ErrReadOnly{Store: s.name}
	}
	return fs, provider, nil
}

func (s *DataStore) notifyRegistered(ctx context.Context, info common.DataSetMetaInfo) {
	if err := s.fs.NotifyRegistered(ctx, info); err != nil {
		log.Logger(ctx).Sugar().Warnf("notify of %s failed: %v", info.Identifier, err)
	}
}
