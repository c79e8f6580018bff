package datastore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/datastore"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/interface/filesystem"
)

func mustWriteTile(t *testing.T, root, key, sensingTime, csCode string, ulx, uly int) string {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(dir, 0766); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	metadata := fmt.Sprintf(tileMetadata, sensingTime, csCode, ulx, uly)
	if err := os.WriteFile(filepath.Join(dir, "metadata.xml"), []byte(metadata), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir
}

func newTestComponent(t *testing.T, root string) *datastore.Component {
	t.Helper()
	fsRegistry, err := filesystem.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	providerRegistry, err := datastore.DefaultProviderRegistry()
	if err != nil {
		t.Fatalf("DefaultProviderRegistry: %v", err)
	}
	config := datastore.Config{Stores: []datastore.StoreConfig{{
		Name:             "s2",
		FileSystem:       datastore.BackendConfig{Type: "local", Parameters: map[string]string{"path": filepath.Join(root, "archive")}},
		MetaInfoProvider: datastore.BackendConfig{Type: "json", Parameters: map[string]string{"path": filepath.Join(root, "catalog.json")}},
	}}}
	component, err := datastore.NewComponent(context.Background(), config, fsRegistry, providerRegistry)
	if err != nil {
		t.Fatalf("NewComponent: %v", err)
	}
	return component
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("Unmarshal %q: %v", w.Body.String(), err)
	}
}

func TestHandler(t *testing.T) {
	root := t.TempDir()
	archiveRoot := filepath.Join(root, "archive")
	tile29 := mustWriteTile(t, archiveRoot, "29/S/QB/2017/9/4/0", "2017-09-04T11:18:25.466Z", "EPSG:32629", 699960, 4200000)
	mustWriteTile(t, archiveRoot, "34/V/CL/2016/11/22/0", "2016-11-22T10:03:36.464Z", "EPSG:32634", 300000, 6600000)
	router := newTestComponent(t, root).NewHandler()

	t.Run("lists the stores", func(t *testing.T) {
		w := do(t, router, "GET", "/stores", "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var statuses []struct {
			Name       string `json:"name"`
			FileSystem string `json:"file_system"`
			Provider   string `json:"meta_info_provider"`
			Writable   bool   `json:"writable"`
		}
		decode(t, w, &statuses)
		if len(statuses) != 1 || statuses[0].Name != "s2" {
			t.Errorf("Expect the store s2 found %v", statuses)
		}
		if !statuses[0].Writable {
			t.Errorf("Expect s2 to be writable")
		}
		if !strings.HasPrefix(statuses[0].FileSystem, "Local[") {
			t.Errorf("Expect a local file system found %s", statuses[0].FileSystem)
		}
	})

	t.Run("rejects an unknown store", func(t *testing.T) {
		w := do(t, router, "GET", "/stores/nowhere/query", "")
		if w.Code != 404 {
			t.Errorf("Expect 404 found %d", w.Code)
		}
	})

	t.Run("updates the catalog from the archive", func(t *testing.T) {
		w := do(t, router, "POST", "/stores/s2/update", "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var report catalog.UpdateReport
		decode(t, w, &report)
		if len(report.Added) != 2 || len(report.Removed) != 0 {
			t.Errorf("Expect 2 added 0 removed found %d added %d removed", len(report.Added), len(report.Removed))
		}
	})

	t.Run("queries by data type and time", func(t *testing.T) {
		w := do(t, router, "GET", "/stores/s2/query?data_type="+common.TypeAwsS2L1C, "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var records []common.DataSetMetaInfo
		decode(t, w, &records)
		if len(records) != 2 {
			t.Fatalf("Expect 2 records found %d", len(records))
		}

		w = do(t, router, "GET", "/stores/s2/query?data_type="+common.TypeAwsS2L1C+"&start=2017-01-01", "")
		records = nil
		decode(t, w, &records)
		if len(records) != 1 || records[0].StartTime != "2017-09-04 11:18:25" {
			t.Errorf("Expect the 2017 tile found %v", records)
		}
	})

	t.Run("rejects an unreadable time", func(t *testing.T) {
		w := do(t, router, "GET", "/stores/s2/query?start=the-day-after", "")
		if w.Code != 400 {
			t.Errorf("Expect 400 found %d", w.Code)
		}
	})

	t.Run("queries with a GeoJSON region", func(t *testing.T) {
		body := `{"data_type":"AWS_S2_L1C","region":{"type":"Polygon","coordinates":[[[-7,36.5],[-5,36.5],[-5,38.5],[-7,38.5],[-7,36.5]]]}}`
		w := do(t, router, "POST", "/stores/s2/query", body)
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var records []common.DataSetMetaInfo
		decode(t, w, &records)
		if len(records) != 1 || records[0].Identifier != tile29 {
			t.Errorf("Expect the 29SQB tile found %v", records)
		}
	})

	t.Run("resolves the matching records", func(t *testing.T) {
		w := do(t, router, "GET", "/stores/s2/query/resolve?data_type="+common.TypeAwsS2L1C, "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var resolutions []datastore.Resolution
		decode(t, w, &resolutions)
		if len(resolutions) != 2 {
			t.Fatalf("Expect 2 resolutions found %d", len(resolutions))
		}
		for _, resolution := range resolutions {
			if resolution.Error != "" || resolution.FileRef == nil {
				t.Errorf("Expect a resolved file for %s found %+v", resolution.Identifier, resolution)
			}
		}
	})

	t.Run("gets one data set", func(t *testing.T) {
		w := do(t, router, "GET", "/stores/s2/datasets?"+url.Values{"identifier": {tile29}}.Encode(), "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var info common.DataSetMetaInfo
		decode(t, w, &info)
		if info.Identifier != tile29 {
			t.Errorf("Expect %s found %s", tile29, info.Identifier)
		}

		w = do(t, router, "GET", "/stores/s2/datasets?identifier=nowhere", "")
		if w.Code != 404 {
			t.Errorf("Expect 404 found %d", w.Code)
		}
	})

	t.Run("returns the merged coverage", func(t *testing.T) {
		w := do(t, router, "GET", "/stores/s2/coverage?data_type="+common.TypeAwsS2L1C, "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var coverage struct {
			Coverage string `json:"coverage"`
		}
		decode(t, w, &coverage)
		if !strings.Contains(coverage.Coverage, "POLYGON") {
			t.Errorf("Expect a polygon found %s", coverage.Coverage)
		}
	})

	t.Run("has no remote listing on a local store", func(t *testing.T) {
		w := do(t, router, "GET", "/stores/s2/remote", "")
		if w.Code != 404 {
			t.Errorf("Expect 404 found %d", w.Code)
		}
	})

	t.Run("requires the put and delete parameters", func(t *testing.T) {
		w := do(t, router, "POST", "/stores/s2/put", "")
		if w.Code != 400 {
			t.Errorf("Expect 400 found %d", w.Code)
		}
		w = do(t, router, "DELETE", "/stores/s2/datasets", "")
		if w.Code != 400 {
			t.Errorf("Expect 400 found %d", w.Code)
		}
	})

	t.Run("puts and deletes a data set", func(t *testing.T) {
		source := mustWriteTile(t, filepath.Join(root, "incoming"), "30/T/XQ/2018/1/1/0", "2018-01-01T10:00:00.000Z", "EPSG:32630", 199980, 4400040)
		w := do(t, router, "POST", "/stores/s2/put?"+url.Values{"path": {source}}.Encode(), "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		var info common.DataSetMetaInfo
		decode(t, w, &info)
		if info.Identifier != filepath.Join(archiveRoot, "30/T/XQ/2018/1/1/0") {
			t.Errorf("Expect an archive identifier found %s", info.Identifier)
		}

		w = do(t, router, "DELETE", "/stores/s2/datasets?"+url.Values{"identifier": {info.Identifier}}.Encode(), "")
		if w.Code != 200 {
			t.Fatalf("Expect 200 found %d: %s", w.Code, w.Body.String())
		}
		w = do(t, router, "GET", "/stores/s2/datasets?"+url.Values{"identifier": {info.Identifier}}.Encode(), "")
		if w.Code != 404 {
			t.Errorf("Expect 404 found %d", w.Code)
		}
	})

	t.Run("deletes of unknown data sets are reported", func(t *testing.T) {
		w := do(t, router, "DELETE", "/stores/s2/datasets?identifier=nowhere", "")
		if w.Code != 404 {
			t.Errorf("Expect 404 found %d", w.Code)
		}
	})

	t.Run("clears the cache", func(t *testing.T) {
		w := do(t, router, "DELETE", "/stores/s2/cache", "")
		if w.Code != 200 {
			t.Errorf("Expect 200 found %d", w.Code)
		}
	})
}

func TestHandlerRejectsUnreadablePutSource(t *testing.T) {
	root := t.TempDir()
	mustWriteTile(t, filepath.Join(root, "archive"), "29/S/QB/2017/9/4/0", "2017-09-04T11:18:25.466Z", "EPSG:32629", 699960, 4200000)
	router := newTestComponent(t, root).NewHandler()

	notes := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(notes, []byte("unrelated"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w := do(t, router, "POST", "/stores/s2/put?"+url.Values{"path": {notes}}.Encode(), "")
	if w.Code != 400 {
		t.Errorf("Expect 400 found %d: %s", w.Code, w.Body.String())
	}
}
