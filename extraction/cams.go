package extraction

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/eoarchive/data-access/common"
)

// Cams extracts records from CAMS aerosol forecasts, one global netcdf file
// per day named after it (2017-09-04.nc).
type Cams struct{}

func (Cams) Name() string {
	return common.TypeCams
}

func (Cams) Matches(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".nc") {
		return false
	}
	_, err := time.Parse(common.SensingDateFormat, strings.TrimSuffix(base, ".nc"))
	return err == nil
}

func (Cams) Extract(path string) (common.DataSetMetaInfo, error) {
	day := strings.TrimSuffix(filepath.Base(path), ".nc")
	if _, err := time.Parse(common.SensingDateFormat, day); err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: "no date in name"}
	}
	return common.DataSetMetaInfo{
		Coverage:   common.Global,
		StartTime:  day,
		EndTime:    day,
		DataType:   common.TypeCams,
		Identifier: path,
	}, nil
}

// CamsTiff extracts records from per-day directories of CAMS rasters
// (2017_09_04/*.tif).
type CamsTiff struct{}

func (CamsTiff) Name() string {
	return common.TypeCamsTiff
}

func (CamsTiff) Matches(path string) bool {
	_, err := camsTiffDay(path)
	return err == nil
}

func (CamsTiff) Extract(path string) (common.DataSetMetaInfo, error) {
	day, err := camsTiffDay(path)
	if err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: path, Reason: "no date in name"}
	}
	return common.DataSetMetaInfo{
		Coverage:   common.Global,
		StartTime:  day,
		EndTime:    day,
		DataType:   common.TypeCamsTiff,
		Identifier: path,
	}, nil
}

func camsTiffDay(path string) (string, error) {
	day := strings.ReplaceAll(filepath.Base(path), "_", "-")
	if _, err := time.Parse(common.SensingDateFormat, day); err != nil {
		return "", err
	}
	return day, nil
}
