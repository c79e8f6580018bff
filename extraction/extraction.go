// Package extraction derives catalog records from data set names and
// contents. One extractor exists per data type. A Provision dispatches to
// them by type key and detects the type of unknown paths during archive
// scans.
package extraction

import (
	"fmt"

	"github.com/eoarchive/data-access/common"
)

// Extractor fills a DataSetMetaInfo for one data type.
type Extractor interface {
	// Name returns the data type key the extractor is responsible for.
	Name() string
	// Matches reports whether the path looks like a data set of this type.
	// It may stat the path but must not read data.
	Matches(path string) bool
	// Extract reads the data set and returns its full record. The identifier
	// of the returned record is the given path.
	Extract(path string) (common.DataSetMetaInfo, error)
}

// RelativePather is implemented by extractors whose data sets keep a
// canonical relative layout when copied into a local archive.
type RelativePather interface {
	RelativePath(path string) string
}

type ErrUnparseable struct {
	Source, Reason string
}

func (e ErrUnparseable) Error() string {
	return fmt.Sprintf("unparseable metadata in %s: %s", e.Source, e.Reason)
}

type ErrUnknownType struct {
	DataType string
}

func (e ErrUnknownType) Error() string {
	return fmt.Sprintf("no extractor for data type: %s", e.DataType)
}

// Provision dispatches extraction over a fixed set of extractors.
type Provision struct {
	extractors []Extractor
}

// NewProvision creates a provision over the given extractors, or over
// Default() when none are given.
func NewProvision(extractors ...Extractor) *Provision {
	if len(extractors) == 0 {
		extractors = Default()
	}
	return &Provision{extractors: extractors}
}

// Default returns the built-in extractors. Order matters for Detect: the
// first match wins.
func Default() []Extractor {
	return []Extractor{
		AwsS2{},
		Aster{},
		NewMcd43(),
		NewMcd15(),
		NewS2AEmu(),
		NewS2BEmu(),
		NewWVEmu(),
		Cams{},
		CamsTiff{},
	}
}

// Get returns the extractor of the given data type, or ErrUnknownType.
func (p *Provision) Get(dataType string) (Extractor, error) {
	for _, e := range p.extractors {
		if e.Name() == dataType {
			return e, nil
		}
	}
	return nil, ErrUnknownType{DataType: dataType}
}

// Extract dispatches extraction of the path by data type key.
func (p *Provision) Extract(dataType, path string) (common.DataSetMetaInfo, error) {
	e, err := p.Get(dataType)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Extract.%w", err)
	}
	return e.Extract(path)
}

// Detect returns the extractor whose data type the path belongs to.
func (p *Provision) Detect(path string) (Extractor, bool) {
	for _, e := range p.extractors {
		if e.Matches(path) {
			return e, true
		}
	}
	return nil, false
}

// RelativeArchivePath returns the relative path under which a data set of
// the given type should be laid out in a local archive ("" when the type has
// no canonical layout).
func (p *Provision) RelativeArchivePath(dataType, path string) string {
	e, err := p.Get(dataType)
	if err != nil {
		return ""
	}
	if rp, ok := e.(RelativePather); ok {
		return rp.RelativePath(path)
	}
	return ""
}
