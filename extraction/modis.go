package extraction

import (
	"path/filepath"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service/geometry"
)

// Modis extracts records from MODIS granules on the sinusoidal grid
// (MCD43A1.A2017250.h17v05.006.2017258075956.hdf). The same extractor serves
// every product, parameterized by product name and collection.
type Modis struct {
	product, collection string
}

func NewMcd43() Modis {
	return Modis{product: "MCD43A1", collection: "006"}
}

func NewMcd15() Modis {
	return Modis{product: "MCD15A2H", collection: "006"}
}

func (m Modis) Name() string {
	return m.product + "." + m.collection
}

func (m Modis) Matches(path string) bool {
	g, err := common.ParseModisGranule(filepath.Base(path))
	return err == nil && g.DataType() == m.Name()
}

func (m Modis) Extract(path string) (common.DataSetMetaInfo, error) {
	g, err := common.ParseModisGranule(filepath.Base(path))
	if err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: err.Error()}
	}
	if g.DataType() != m.Name() {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: "granule belongs to " + g.DataType()}
	}
	coverage, err := geometry.ModisTileWKT(g.H, g.V)
	if err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: err.Error()}
	}
	day := g.Acquired.Format(common.SensingDateFormat)
	return common.DataSetMetaInfo{
		Coverage:   coverage,
		StartTime:  day,
		EndTime:    day,
		DataType:   m.Name(),
		Identifier: path,
	}, nil
}
