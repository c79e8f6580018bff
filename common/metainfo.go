package common

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Global is the coverage of data sets that are not spatially bounded
// (atmosphere products, emulators, ...). A record carrying this coverage
// matches every region of interest without any geometry test.
const Global = "POLYGON((-180.0 90.0, 180.0 90.0, 180.0 -90.0, -180.0 -90.0, -180.0 90.0))"

const (
	SensingTimeFormat = "2006-01-02 15:04:05"
	SensingDateFormat = "2006-01-02"
)

// DataSetMetaInfo describes one data set of an archive: where it is valid,
// when it was sensed, which product family it belongs to and how the backend
// that owns it addresses it. Identifier is backend-specific: a path for local
// archives, an object prefix for remote ones.
type DataSetMetaInfo struct {
	Coverage   string `json:"coverage"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	DataType   string `json:"data_type"`
	Identifier string `json:"identifier"`
}

// FileRef points a consumer to retrievable data: a url into the local
// filesystem (or a remote location for non-caching backends) plus the time
// range and kind of the referenced item.
type FileRef struct {
	URL       string `json:"url"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Kind      Kind   `json:"kind"`
}

// FileRefFor derives the FileRef of a resolved local copy of the data set.
func FileRefFor(info DataSetMetaInfo, url string) FileRef {
	return FileRef{
		URL:       url,
		StartTime: info.StartTime,
		EndTime:   info.EndTime,
		Kind:      KindOf(url),
	}
}

// IsGlobal reports whether the record is not spatially bounded: the
// whole-globe sentinel, or a record that carries no coverage at all. Both
// intersect every region.
func (i DataSetMetaInfo) IsGlobal() bool {
	return i.Coverage == "" || i.Coverage == Global
}

// TimeRange parses the record's sensing times. ok is false when the record is
// not time-bounded (both times null), in which case the record matches every
// time window. A record with only one bound is treated as an instant.
func (i DataSetMetaInfo) TimeRange() (start, end time.Time, ok bool, err error) {
	if i.StartTime == "" && i.EndTime == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if i.StartTime != "" {
		if start, err = ParseSensingTime(i.StartTime); err != nil {
			return start, end, false, fmt.Errorf("TimeRange.%w", err)
		}
	}
	if i.EndTime != "" {
		if end, err = ParseSensingTime(i.EndTime); err != nil {
			return start, end, false, fmt.Errorf("TimeRange.%w", err)
		}
	}
	if i.StartTime == "" {
		start = end
	}
	if i.EndTime == "" {
		end = start
	}
	return start, end, true, nil
}

func (i DataSetMetaInfo) String() string {
	return fmt.Sprintf("%s[%s]", i.DataType, i.Identifier)
}

// ParseSensingTime accepts the catalog time formats ("2017-09-04 11:18:25",
// "2017-09-04") as well as anything reasonably date-like coming from a query.
func ParseSensingTime(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseSensingTime: %w", err)
	}
	return t, nil
}
