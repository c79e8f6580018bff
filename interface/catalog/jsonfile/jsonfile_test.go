package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/service"
)

var (
	rec29SQB = common.DataSetMetaInfo{
		Coverage:   "POLYGON((-6.72 37.93, -5.48 37.89, -5.52 36.91, -6.75 36.94, -6.72 37.93))",
		StartTime:  "2017-09-04 11:18:25",
		EndTime:    "2017-09-04 11:18:25",
		DataType:   common.TypeAwsS2L1C,
		Identifier: "29/S/QB/2017/9/4/0",
	}
	rec34VCL = common.DataSetMetaInfo{
		Coverage:   "POLYGON((17.47 59.53, 19.45 59.49, 19.39 58.50, 17.46 58.54, 17.47 59.53))",
		StartTime:  "2016-11-22 10:03:36",
		EndTime:    "2016-11-22 10:03:36",
		DataType:   common.TypeAwsS2L1C,
		Identifier: "34/V/CL/2016/11/22/0",
	}
	recCams = common.DataSetMetaInfo{
		Coverage:   common.Global,
		StartTime:  "2017-09-04",
		EndTime:    "2017-09-04",
		DataType:   common.TypeCams,
		Identifier: "/archive/cams/2017-09-04.nc",
	}
	recAster = common.DataSetMetaInfo{
		Coverage:   "POLYGON((-7 37, -6 37, -6 38, -7 38, -7 37))",
		DataType:   common.TypeAster,
		Identifier: "/archive/aster/ASTGTMV003_N37W007_dem.tif",
	}
)

func timeOf(t *testing.T, s string) *time.Time {
	parsed, err := common.ParseSensingTime(s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return &parsed
}

func newTestProvider(t *testing.T, records ...common.DataSetMetaInfo) (*Provider, string) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	p, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for _, record := range records {
		if err := p.Add(ctx, record); err != nil {
			t.Fatalf("Add %s: %v", record.Identifier, err)
		}
	}
	return p, path
}

func TestMissingFileIsEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nowhere", "catalog.json")
	p, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	all, err := p.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty catalog, got %d records", len(all))
	}
	if err := p.Add(context.Background(), rec29SQB); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("catalog file not created: %v", err)
	}
}

func TestEmptyFileIsEmptyCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte("\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	all, err := p.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty catalog, got %d records", len(all))
	}
}

func TestCorruptFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte("[{\"coverage\": oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("expected error on corrupt catalog")
	} else if !service.Fatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	_, path := newTestProvider(t, rec29SQB, recCams)

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info, err := reloaded.Get(context.Background(), rec29SQB.Identifier)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info != rec29SQB {
		t.Fatalf("got %v, expected %v", info, rec29SQB)
	}
	all, err := reloaded.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
}

func TestLastWriteWins(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB)
	ctx := context.Background()

	moved := rec29SQB
	moved.StartTime = "2017-09-04 11:19:00"
	moved.EndTime = moved.StartTime
	if err := p.Add(ctx, moved); err != nil {
		t.Fatalf("Add: %v", err)
	}
	all, err := p.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record after replacement, got %d", len(all))
	}
	if all[0].StartTime != moved.StartTime {
		t.Fatalf("got %s, expected %s", all[0].StartTime, moved.StartTime)
	}
}

func TestRemove(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB)
	ctx := context.Background()

	if err := p.Remove(ctx, rec29SQB.Identifier); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	err := p.Remove(ctx, rec29SQB.Identifier)
	notFound := catalog.ErrNotFound{}
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := p.Get(ctx, rec29SQB.Identifier); !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryByType(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB, rec34VCL, recCams)
	ctx := context.Background()

	results, err := p.Query(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records, got %d", len(results))
	}
	results, err = p.Query(ctx, catalog.Query{DataType: common.TypeMcd43})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no record, got %d", len(results))
	}
}

func TestQueryByTime(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB, rec34VCL, recAster)
	ctx := context.Background()

	results, err := p.Query(ctx, catalog.Query{
		Start: timeOf(t, "2017-09-01 00:00:00"),
		End:   timeOf(t, "2017-09-30 00:00:00"),
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	// the timeless record matches any window
	if len(results) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(results), results)
	}
	for _, info := range results {
		if info.Identifier == rec34VCL.Identifier {
			t.Fatalf("2016 record matched a 2017 window")
		}
	}

	results, err = p.Query(ctx, catalog.Query{End: timeOf(t, "2016-12-31 23:59:59")})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(results), results)
	}
	for _, info := range results {
		if info.Identifier == rec29SQB.Identifier {
			t.Fatalf("2017 record matched a window ending in 2016")
		}
	}
}

func TestQueryByRegion(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB, rec34VCL, recCams)
	ctx := context.Background()

	// around Seville, inside the 29SQB tile and far from 34VCL
	results, err := p.Query(ctx, catalog.Query{
		RegionWKT: "POLYGON((-6.1 37.2, -5.8 37.2, -5.8 37.5, -6.1 37.5, -6.1 37.2))",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(results), results)
	}
	for _, info := range results {
		if info.Identifier == rec34VCL.Identifier {
			t.Fatalf("baltic tile matched an andalusian region")
		}
		if info.Identifier == recCams.Identifier && !info.IsGlobal() {
			t.Fatalf("global record lost its coverage")
		}
	}
}

func TestQueryRecordWithoutCoverage(t *testing.T) {
	// documents written by other tools may omit the coverage; such records
	// intersect every region
	path := filepath.Join(t.TempDir(), "catalog.json")
	document := `[{"start_time": "2017-09-04", "end_time": "2017-09-04", "data_type": "CAMS", "identifier": "/archive/cams/2017-09-04.nc"}]`
	if err := os.WriteFile(path, []byte(document), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := p.Query(context.Background(), catalog.Query{
		RegionWKT: "POLYGON((-6.1 37.2, -5.8 37.2, -5.8 37.5, -6.1 37.5, -6.1 37.2))",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the record without coverage to match, got %v", results)
	}
}

func TestQueryCombined(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB, rec34VCL, recCams, recAster)
	ctx := context.Background()

	results, err := p.Query(ctx, catalog.Query{
		DataType:  common.TypeAwsS2L1C,
		Start:     timeOf(t, "2017-09-04 00:00:00"),
		End:       timeOf(t, "2017-09-05 00:00:00"),
		RegionWKT: "POLYGON((-6.1 37.2, -5.8 37.2, -5.8 37.5, -6.1 37.5, -6.1 37.2))",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Identifier != rec29SQB.Identifier {
		t.Fatalf("expected the single 29SQB record, got %v", results)
	}
}

func TestQuerySkipsBadRecord(t *testing.T) {
	p, path := newTestProvider(t, rec29SQB)
	bad := common.DataSetMetaInfo{
		Coverage:   common.Global,
		StartTime:  "not a time",
		DataType:   common.TypeCams,
		Identifier: "/archive/cams/bad.nc",
	}
	p.mu.Lock()
	p.dataSets = append(p.dataSets, bad)
	err := p.persist()
	p.mu.Unlock()
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results, err := reloaded.Query(context.Background(), catalog.Query{
		Start: timeOf(t, "2017-01-01 00:00:00"),
		End:   timeOf(t, "2018-01-01 00:00:00"),
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].Identifier != rec29SQB.Identifier {
		t.Fatalf("expected the good record only, got %v", results)
	}
}

func TestSupportedDataTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	p, err := New(path, common.TypeCams, common.TypeCamsTiff)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.Provides(common.TypeCams) || p.Provides(common.TypeAwsS2L1C) {
		t.Fatal("supported data types not honored")
	}
	ctx := context.Background()
	if err := p.Add(ctx, recCams); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Add(ctx, rec29SQB); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := p.Query(ctx, catalog.Query{DataType: common.TypeAwsS2L1C})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no record for an unsupported type, got %d", len(results))
	}
}

func TestApply(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB, recCams)
	ctx := context.Background()

	err := p.Apply(ctx, []common.DataSetMetaInfo{rec34VCL, recAster}, []string{recCams.Identifier, "never/registered"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	all, err := p.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	notFound := catalog.ErrNotFound{}
	if _, err := p.Get(ctx, recCams.Identifier); !errors.As(err, &notFound) {
		t.Fatalf("expected removed record to be gone, got %v", err)
	}
}

func TestReconcile(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB, recCams)
	ctx := context.Background()

	scanned := []common.DataSetMetaInfo{rec29SQB, rec34VCL, recAster}
	report, err := catalog.Reconcile(ctx, p, scanned, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Added) != 2 {
		t.Fatalf("expected 2 added, got %v", report.Added)
	}
	if len(report.Removed) != 1 || report.Removed[0].Identifier != recCams.Identifier {
		t.Fatalf("expected the cams record removed, got %v", report.Removed)
	}
	all, err := p.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}

	// a second pass with the same scan changes nothing
	report, err = catalog.Reconcile(ctx, p, scanned, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Added) != 0 || len(report.Removed) != 0 {
		t.Fatalf("expected an idempotent pass, got %v", report)
	}
}

func TestReconcileKeepsFaultedRecords(t *testing.T) {
	p, _ := newTestProvider(t, rec29SQB, rec34VCL)
	ctx := context.Background()

	// 34VCL failed to scan: it must not be dropped from the catalog
	faults := []catalog.Fault{{Identifier: rec34VCL.Identifier, Reason: "open metadata.xml: permission denied"}}
	report, err := catalog.Reconcile(ctx, p, []common.DataSetMetaInfo{rec29SQB}, faults)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Removed) != 0 {
		t.Fatalf("expected no removal, got %v", report.Removed)
	}
	if len(report.Faults) != 1 {
		t.Fatalf("expected the scan fault reported, got %v", report.Faults)
	}
	if _, err := p.Get(ctx, rec34VCL.Identifier); err != nil {
		t.Fatalf("faulted record was dropped: %v", err)
	}
}

func TestReconcileSkipsUnsupportedTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	p, err := New(path, common.TypeAwsS2L1C)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	report, err := catalog.Reconcile(ctx, p, []common.DataSetMetaInfo{rec29SQB, recCams}, nil)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(report.Added) != 1 || report.Added[0].Identifier != rec29SQB.Identifier {
		t.Fatalf("expected only the supported record, got %v", report.Added)
	}
}

func TestAddRejectsInvalidRecord(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	cases := []common.DataSetMetaInfo{
		{Coverage: common.Global, DataType: common.TypeCams},
		{Coverage: common.Global, Identifier: "x"},
		{DataType: common.TypeCams, Identifier: "x"},
		{Coverage: common.Global, DataType: common.TypeCams, Identifier: "x", StartTime: "not a time"},
	}
	for _, info := range cases {
		if err := p.Add(ctx, info); err == nil {
			t.Fatalf("expected error for %v", info)
		}
	}
}
