package extraction

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eoarchive/data-access/common"
	"github.com/eoarchive/data-access/service/geometry"
)

// AwsS2 extracts records from Sentinel-2 L1C tiles laid out the AWS way
// (zone/latitude band/grid square/year/month/day/index with a metadata.xml
// inside).
type AwsS2 struct{}

func (AwsS2) Name() string {
	return common.TypeAwsS2L1C
}

func (AwsS2) Matches(path string) bool {
	part := common.TileKeyPart(path)
	return part != "" && strings.HasSuffix(strings.TrimRight(path, "/"), part)
}

func (AwsS2) RelativePath(path string) string {
	return common.TileKeyPart(path)
}

func (e AwsS2) Extract(path string) (common.DataSetMetaInfo, error) {
	metadataFile := filepath.Join(path, "metadata.xml")
	data, err := os.ReadFile(metadataFile)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("AwsS2.Extract.%w", err)
	}
	info, err := e.extract(data, metadataFile)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("AwsS2.Extract.%w", err)
	}
	info.Identifier = path
	return info, nil
}

func (AwsS2) extract(metadataFile []byte, metadataURL string) (common.DataSetMetaInfo, error) {
	// XML grid size and geoposition per resolution
	type Size struct {
		Resolution string `xml:"resolution,attr"`
		NRows      int    `xml:"NROWS"`
		NCols      int    `xml:"NCOLS"`
	}
	type Geoposition struct {
		Resolution string  `xml:"resolution,attr"`
		ULX        float64 `xml:"ULX"`
		ULY        float64 `xml:"ULY"`
		XDim       float64 `xml:"XDIM"`
		YDim       float64 `xml:"YDIM"`
	}

	// Read tile metadata file
	tile := struct {
		SensingTime  string        `xml:"General_Info>SENSING_TIME"`
		CSCode       string        `xml:"Geometric_Info>Tile_Geocoding>HORIZONTAL_CS_CODE"`
		Sizes        []Size        `xml:"Geometric_Info>Tile_Geocoding>Size"`
		Geopositions []Geoposition `xml:"Geometric_Info>Tile_Geocoding>Geoposition"`
	}{}
	if err := xml.Unmarshal(metadataFile, &tile); err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("Unmarshal[%s] : %w", metadataURL, err)
	}

	sensingTime, err := sensingTimeOf(tile.SensingTime)
	if err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: metadataURL, Reason: err.Error()}
	}

	zone, south, err := utmZoneOf(tile.CSCode)
	if err != nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: metadataURL, Reason: err.Error()}
	}

	// Tile extent from the 60m grid (the coarsest, any resolution spans the
	// same tile)
	var size *Size
	var geoposition *Geoposition
	for i, s := range tile.Sizes {
		if s.Resolution == "60" {
			size = &tile.Sizes[i]
		}
	}
	for i, g := range tile.Geopositions {
		if g.Resolution == "60" {
			geoposition = &tile.Geopositions[i]
		}
	}
	if size == nil || geoposition == nil {
		return common.DataSetMetaInfo{}, ErrUnparseable{Source: metadataURL, Reason: "no 60m tile geocoding"}
	}

	ulx, uly := geoposition.ULX, geoposition.ULY
	lrx := ulx + float64(size.NCols)*geoposition.XDim
	lry := uly + float64(size.NRows)*geoposition.YDim

	ulLon, ulLat := geometry.UTMToWGS84(zone, south, ulx, uly)
	urLon, urLat := geometry.UTMToWGS84(zone, south, lrx, uly)
	lrLon, lrLat := geometry.UTMToWGS84(zone, south, lrx, lry)
	llLon, llLat := geometry.UTMToWGS84(zone, south, ulx, lry)

	coverage, err := geometry.PolygonWKT(
		[2]float64{ulLon, ulLat},
		[2]float64{urLon, urLat},
		[2]float64{lrLon, lrLat},
		[2]float64{llLon, llLat},
	)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("PolygonWKT: %w", err)
	}

	return common.DataSetMetaInfo{
		Coverage:  coverage,
		StartTime: sensingTime,
		EndTime:   sensingTime,
		DataType:  common.TypeAwsS2L1C,
	}, nil
}

// sensingTimeOf normalizes an ISO sensing time (2017-09-04T11:18:25.466Z)
// to the catalog time format, dropping fractional seconds.
func sensingTimeOf(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("no sensing time")
	}
	s = strings.Replace(s, "T", " ", 1)
	s = strings.TrimSuffix(s, "Z")
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[:i]
	}
	if _, err := common.ParseSensingTime(s); err != nil {
		return "", fmt.Errorf("invalid sensing time %s", s)
	}
	return s, nil
}

// utmZoneOf parses an EPSG code (EPSG:32629) into a UTM zone and hemisphere.
func utmZoneOf(csCode string) (zone int, south bool, err error) {
	code := strings.TrimPrefix(strings.TrimSpace(csCode), "EPSG:")
	if len(code) != 5 {
		return 0, false, fmt.Errorf("invalid horizontal CS code %s", csCode)
	}
	switch code[:3] {
	case "326":
		south = false
	case "327":
		south = true
	default:
		return 0, false, fmt.Errorf("not a UTM CS code %s", csCode)
	}
	if _, err := fmt.Sscanf(code[3:], "%d", &zone); err != nil || zone < 1 || zone > 60 {
		return 0, false, fmt.Errorf("invalid UTM zone in CS code %s", csCode)
	}
	return zone, south, nil
}
