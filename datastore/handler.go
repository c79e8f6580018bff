package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/extraction"
	"github.com/eoarchive/data-access/interface/catalog"
	"github.com/eoarchive/data-access/interface/fetcher"
	"github.com/eoarchive/data-access/interface/filesystem"
	"github.com/eoarchive/data-access/service"
	"github.com/eoarchive/data-access/service/log"
	"github.com/gorilla/mux"
)

func (c *Component) NewHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/stores", c.ListStoresHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/query", c.QueryHandler).Methods("GET", "POST")
	r.HandleFunc("/stores/{store}/query/resolve", c.QueryAndResolveHandler).Methods("GET", "POST")
	r.HandleFunc("/stores/{store}/datasets", c.ListDataSetsHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/datasets", c.DeleteDataSetHandler).Methods("DELETE")
	r.HandleFunc("/stores/{store}/coverage", c.CoverageHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/remote", c.ListRemoteHandler).Methods("GET")
	r.HandleFunc("/stores/{store}/update", c.UpdateHandler).Methods("POST")
	r.HandleFunc("/stores/{store}/put", c.PutHandler).Methods("POST")
	r.HandleFunc("/stores/{store}/cache", c.ClearCacheHandler).Methods("DELETE")
	return r
}

func statusOf(err error) int {
	var catalogNotFound catalog.ErrNotFound
	var fsNotFound filesystem.ErrNotFound
	var dataSetNotFound fetcher.ErrDataSetNotFound
	var catalogExists catalog.ErrAlreadyExists
	var fsExists filesystem.ErrAlreadyExists
	var readOnly ErrReadOnly
	var unparseable extraction.ErrUnparseable
	var unknownType extraction.ErrUnknownType
	switch {
	case errors.As(err, &catalogNotFound), errors.As(err, &fsNotFound), errors.As(err, &dataSetNotFound):
		return 404
	case errors.As(err, &catalogExists), errors.As(err, &fsExists):
		return 409
	case errors.As(err, &readOnly), errors.As(err, &unparseable), errors.As(err, &unknownType):
		return 400
	default:
		return 500
	}
}

func writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusOf(err)
	if status == 500 {
		log.Logger(req.Context()).Sugar().Warnf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	w.WriteHeader(status)
	fmt.Fprintf(w, "%v", err)
}

func (c *Component) store(w http.ResponseWriter, req *http.Request) (*DataStore, bool) {
	store, err := c.Store(mux.Vars(req)["store"])
	if err != nil {
		writeError(w, req, err)
		return nil, false
	}
	return store, true
}

// queryDocument is the body of the POST query routes. The region is either a
// WKT string or an inline GeoJSON geometry.
type queryDocument struct {
	DataType string          `json:"data_type"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Region   json.RawMessage `json:"region"`
}

func (d queryDocument) regionText() string {
	if len(d.Region) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.Region, &s); err == nil {
		return s
	}
	return string(d.Region)
}

func loadQuery(w http.ResponseWriter, req *http.Request) (catalog.Query, error) {
	doc := queryDocument{}
	if req.Method == "POST" {
		if err := json.NewDecoder(req.Body).Decode(&doc); err != nil {
			w.WriteHeader(400)
			fmt.Fprintf(w, "%v", err)
			return catalog.Query{}, err
		}
	} else {
		doc.DataType = req.FormValue("data_type")
		doc.Start = req.FormValue("start")
		doc.End = req.FormValue("end")
		if region := req.FormValue("region"); region != "" {
			doc.Region = json.RawMessage(region)
		}
	}

	q := catalog.Query{DataType: doc.DataType}
	if doc.Start != "" {
		start, err := common.ParseSensingTime(doc.Start)
		if err != nil {
			w.WriteHeader(400)
			fmt.Fprintf(w, "%v", err)
			return q, err
		}
		q.Start = &start
	}
	if doc.End != "" {
		end, err := common.ParseSensingTime(doc.End)
		if err != nil {
			w.WriteHeader(400)
			fmt.Fprintf(w, "%v", err)
			return q, err
		}
		q.End = &end
	}
	if region := doc.regionText(); region != "" {
		wkt, err := service.RegionWKT(region)
		if err != nil {
			w.WriteHeader(400)
			fmt.Fprintf(w, "%v", err)
			return q, err
		}
		q.RegionWKT = wkt
	}
	return q, nil
}

// storeStatus describes one store. The creation parameters stay private,
// they may carry credentials.
type storeStatus struct {
	Name       string `json:"name"`
	FileSystem string `json:"file_system"`
	Provider   string `json:"meta_info_provider"`
	Writable   bool   `json:"writable"`
}

// ListStoresHandler lists the configured stores
func (c *Component) ListStoresHandler(w http.ResponseWriter, req *http.Request) {
	statuses := make([]storeStatus, 0, len(c.stores))
	for _, name := range c.StoreNames() {
		store := c.stores[name]
		statuses = append(statuses, storeStatus{
			Name:       name,
			FileSystem: store.fs.Name(),
			Provider:   store.provider.Name(),
			Writable:   store.Writable(),
		})
	}
	json.NewEncoder(w).Encode(statuses)
}

// QueryHandler returns the records matching the query
func (c *Component) QueryHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	q, err := loadQuery(w, req)
	if err != nil {
		return
	}
	records, err := store.Query(ctx, q)
	if err != nil {
		writeError(w, req, err)
		return
	}
	json.NewEncoder(w).Encode(records)
}

// QueryAndResolveHandler resolves the records matching the query to local
// files. Failed resolutions are reported per item.
func (c *Component) QueryAndResolveHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	q, err := loadQuery(w, req)
	if err != nil {
		return
	}
	resolutions, err := store.QueryAndResolve(ctx, q)
	if err != nil {
		writeError(w, req, err)
		return
	}
	json.NewEncoder(w).Encode(resolutions)
}

// ListDataSetsHandler lists the records of the store, or one record when the
// identifier parameter is given
func (c *Component) ListDataSetsHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	if identifier := req.FormValue("identifier"); identifier != "" {
		info, err := store.Get(ctx, identifier)
		if err != nil {
			writeError(w, req, err)
			return
		}
		json.NewEncoder(w).Encode(info)
		return
	}
	records, err := store.All(ctx)
	if err != nil {
		writeError(w, req, err)
		return
	}
	json.NewEncoder(w).Encode(records)
}

// DeleteDataSetHandler deletes a data set and its record
func (c *Component) DeleteDataSetHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	identifier := req.FormValue("identifier")
	if identifier == "" {
		w.WriteHeader(400)
		fmt.Fprintf(w, "missing required parameter: identifier")
		return
	}
	if err := store.Remove(ctx, identifier); err != nil {
		writeError(w, req, err)
		return
	}
}

// CoverageHandler returns the union of the coverages matching the query
func (c *Component) CoverageHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	q, err := loadQuery(w, req)
	if err != nil {
		return
	}
	coverage, err := store.Coverage(ctx, q)
	if err != nil {
		writeError(w, req, err)
		return
	}
	json.NewEncoder(w).Encode(struct {
		Coverage string `json:"coverage"`
	}{coverage})
}

// ListRemoteHandler lists the identifiers the remote backend offers
func (c *Component) ListRemoteHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	identifiers, err := store.RemoteIdentifiers(ctx)
	if err != nil {
		writeError(w, req, err)
		return
	}
	json.NewEncoder(w).Encode(identifiers)
}

// UpdateHandler reconciles the catalog with the file system
func (c *Component) UpdateHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	report, err := store.Update(ctx)
	if err != nil {
		writeError(w, req, err)
		return
	}
	json.NewEncoder(w).Encode(report)
}

// PutHandler ingests the data set at the given path
func (c *Component) PutHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	path := req.FormValue("path")
	if path == "" {
		w.WriteHeader(400)
		fmt.Fprintf(w, "missing required parameter: path")
		return
	}
	info, err := store.Put(ctx, path)
	if err != nil {
		writeError(w, req, err)
		return
	}
	json.NewEncoder(w).Encode(info)
}

// ClearCacheHandler reclaims the local cache of the store
func (c *Component) ClearCacheHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	store, ok := c.store(w, req)
	if !ok {
		return
	}
	if err := store.ClearCache(ctx); err != nil {
		writeError(w, req, err)
		return
	}
}
