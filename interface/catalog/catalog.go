package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/eoarchive/data-access/common"
)

type ErrAlreadyExists struct {
	Type, ID string
}

func (e ErrAlreadyExists) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Type, e.ID)
}

type ErrNotFound struct {
	Type, ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.ID)
}

// Query filters catalog records. Zero fields do not constrain.
type Query struct {
	// DataType restricts to one data type
	DataType string
	// Start and End restrict to records whose validity overlaps [Start, End].
	// Records without times are valid at any time.
	Start *time.Time
	End   *time.Time
	// RegionWKT restricts to records whose coverage intersects the region
	RegionWKT string
}

// Fault is a per-record failure of a reconciliation pass
type Fault struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// UpdateReport summarizes a reconciliation pass
type UpdateReport struct {
	Added   []common.DataSetMetaInfo `json:"added"`
	Removed []common.DataSetMetaInfo `json:"removed"`
	Faults  []Fault                  `json:"faults,omitempty"`
}

// MetaInfoProvider is the interface of a catalog of data set records
type MetaInfoProvider interface {
	// Query returns the records matching the query
	Query(ctx context.Context, q Query) ([]common.DataSetMetaInfo, error)
	// Get returns the record with the given identifier, may return ErrNotFound
	Get(ctx context.Context, identifier string) (common.DataSetMetaInfo, error)
	// All returns every record of the catalog
	All(ctx context.Context) ([]common.DataSetMetaInfo, error)
	// Provides returns whether the provider accepts records of the data type
	Provides(dataType string) bool
	// Name of the provider
	Name() string
}

// WritableMetaInfoProvider is a MetaInfoProvider that can register and remove
// records
type WritableMetaInfoProvider interface {
	MetaInfoProvider
	// Add registers the record, replacing an existing record with the same
	// identifier
	Add(ctx context.Context, info common.DataSetMetaInfo) error
	// Remove deletes the record with the given identifier, may return ErrNotFound
	Remove(ctx context.Context, identifier string) error
	// Apply registers and deletes records as a single batch
	Apply(ctx context.Context, add []common.DataSetMetaInfo, remove []string) error
}

// Validate checks that the record is complete enough to be registered
func Validate(info common.DataSetMetaInfo) error {
	if info.Identifier == "" {
		return fmt.Errorf("record without identifier")
	}
	if info.DataType == "" {
		return fmt.Errorf("record %s without data type", info.Identifier)
	}
	if info.Coverage == "" {
		return fmt.Errorf("record %s without coverage", info.Identifier)
	}
	if _, _, _, err := info.TimeRange(); err != nil {
		return fmt.Errorf("record %s: %w", info.Identifier, err)
	}
	return nil
}

// Matches returns whether the record matches the type and time constraints of
// the query. Coverage is not checked here (see geometry.PreparedIntersector).
func Matches(q Query, info common.DataSetMetaInfo) (bool, error) {
	if q.DataType != "" && q.DataType != info.DataType {
		return false, nil
	}
	if q.Start == nil && q.End == nil {
		return true, nil
	}
	start, end, ok, err := info.TimeRange()
	if err != nil {
		return false, fmt.Errorf("Matches.%w", err)
	}
	if !ok {
		// timeless records are valid at any time
		return true, nil
	}
	if q.End != nil && start.After(*q.End) {
		return false, nil
	}
	if q.Start != nil && end.Before(*q.Start) {
		return false, nil
	}
	return true, nil
}
