package extraction

import (
	"path/filepath"
	"strings"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service/geometry"
)

// Aster extracts records from ASTER GDEM tiles (ASTGTM2_N36W006_dem.tif).
// The one-degree cell is named after its south-west corner and carries no
// sensing time.
type Aster struct{}

func (Aster) Name() string {
	return common.TypeAster
}

func (Aster) Matches(path string) bool {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "ASTGTM") || !strings.HasSuffix(base, ".tif") {
		return false
	}
	_, err := common.ParseGridCell(base)
	return err == nil
}

func (Aster) Extract(path string) (common.DataSetMetaInfo, error) {
	base := filepath.Base(path)
	cell, err := common.ParseGridCell(base)
	if err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: err.Error()}
	}
	coverage, err := geometry.CellWKT(cell.Lon, cell.Lat)
	if err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: err.Error()}
	}
	return common.DataSetMetaInfo{
		Coverage:   coverage,
		DataType:   common.TypeAster,
		Identifier: path,
	}, nil
}
