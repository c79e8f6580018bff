package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel-2 L1C tiles on AWS are addressed by UTM zone, latitude band and
// grid square, followed by the acquisition date and an index for multiple
// takes of the same day: 29/S/QB/2017/9/4/0 (month, day and index unpadded).
var tileKeyRegexp = regexp.MustCompile(`([0-9]{1,2})/([A-Z])/([A-Z]{2})/(20[0-9][0-9])/([0-9]{1,2})/([0-9]{1,2})/([0-9]+)`)

// aster dem granules carry their one-degree cell in the name: ASTGTM2_N36W006_dem.tif
var gridCellRegexp = regexp.MustCompile(`([NS])([0-9]{2})([EW])([0-9]{3})`)

// modis granules: MCD43A1.A2017247.h17v05.006.2017256031007.hdf
var modisGranuleRegexp = regexp.MustCompile(`^(M[A-Z0-9]+)\.A([0-9]{4})([0-9]{3})\.h([0-9]{2})v([0-9]{2})\.([0-9]{3})\.[0-9]+\.hdf$`)

// TileKey identifies one Sentinel-2 tile acquisition in the AWS layout.
type TileKey struct {
	Zone       int
	LatBand    string
	GridSquare string
	Year       int
	Month      int
	Day        int
	Index      int
}

// ParseTileKey extracts the tile key from an identifier or path. The key may
// be embedded anywhere in the string (identifiers of archived tiles are full
// paths).
func ParseTileKey(identifier string) (TileKey, error) {
	m := tileKeyRegexp.FindStringSubmatch(identifier)
	if m == nil {
		return TileKey{}, fmt.Errorf("ParseTileKey: no tile key in %s", identifier)
	}
	key := TileKey{LatBand: m[2], GridSquare: m[3]}
	key.Zone, _ = strconv.Atoi(m[1])
	key.Year, _ = strconv.Atoi(m[4])
	key.Month, _ = strconv.Atoi(m[5])
	key.Day, _ = strconv.Atoi(m[6])
	key.Index, _ = strconv.Atoi(m[7])
	if key.Month < 1 || key.Month > 12 || key.Day < 1 || key.Day > 31 {
		return TileKey{}, fmt.Errorf("ParseTileKey: invalid date in %s", identifier)
	}
	return key, nil
}

// HasTileKey reports whether the identifier embeds a tile key.
func HasTileKey(identifier string) bool {
	return tileKeyRegexp.MatchString(identifier)
}

// TileKeyPart returns the tile key substring of the identifier ("" if none).
func TileKeyPart(identifier string) string {
	return tileKeyRegexp.FindString(identifier)
}

// String formats the key the way AWS lays tiles out: 29/S/QB/2017/9/4/0
func (k TileKey) String() string {
	return fmt.Sprintf("%d/%s/%s/%d/%d/%d/%d", k.Zone, k.LatBand, k.GridSquare, k.Year, k.Month, k.Day, k.Index)
}

// TileName returns the compact tile name, e.g. 29SQB.
func (k TileKey) TileName() string {
	return fmt.Sprintf("%d%s%s", k.Zone, k.LatBand, k.GridSquare)
}

// Date returns the acquisition day at midnight UTC.
func (k TileKey) Date() time.Time {
	return time.Date(k.Year, time.Month(k.Month), k.Day, 0, 0, 0, 0, time.UTC)
}

// Info returns the key fields for FormatBrackets substitution.
func (k TileKey) Info() map[string]string {
	return map[string]string{
		"ZONE":          strconv.Itoa(k.Zone),
		"LATITUDE_BAND": k.LatBand,
		"GRID_SQUARE":   k.GridSquare,
		"TILE":          k.TileName(),
		"YEAR":          strconv.Itoa(k.Year),
		"MONTH":         strconv.Itoa(k.Month),
		"DAY":           strconv.Itoa(k.Day),
		"INDEX":         strconv.Itoa(k.Index),
	}
}

// GridCell is a one-degree cell identified by its south-west corner.
type GridCell struct {
	Lat int
	Lon int
}

// ParseGridCell extracts the one-degree cell from a granule name such as
// ASTGTM2_N36W006_dem.tif. Southern and western cells carry negative values.
func ParseGridCell(name string) (GridCell, error) {
	m := gridCellRegexp.FindStringSubmatch(name)
	if m == nil {
		return GridCell{}, fmt.Errorf("ParseGridCell: no grid cell in %s", name)
	}
	var cell GridCell
	cell.Lat, _ = strconv.Atoi(m[2])
	cell.Lon, _ = strconv.Atoi(m[4])
	if m[1] == "S" {
		cell.Lat = -cell.Lat
	}
	if m[3] == "W" {
		cell.Lon = -cell.Lon
	}
	return cell, nil
}

// ModisGranule is the parsed name of a MODIS granule.
type ModisGranule struct {
	Product    string
	Collection string
	Acquired   time.Time
	H, V       int
}

// ParseModisGranule parses granule names like
// MCD43A1.A2017247.h17v05.006.2017256031007.hdf. The acquisition date comes
// from the A<year><day-of-year> field.
func ParseModisGranule(name string) (ModisGranule, error) {
	m := modisGranuleRegexp.FindStringSubmatch(name)
	if m == nil {
		return ModisGranule{}, fmt.Errorf("ParseModisGranule: invalid granule name %s", name)
	}
	g := ModisGranule{Product: m[1], Collection: m[6]}
	year, _ := strconv.Atoi(m[2])
	doy, _ := strconv.Atoi(m[3])
	if doy < 1 || doy > 366 {
		return ModisGranule{}, fmt.Errorf("ParseModisGranule: invalid day of year in %s", name)
	}
	g.Acquired = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
	g.H, _ = strconv.Atoi(m[4])
	g.V, _ = strconv.Atoi(m[5])
	return g, nil
}

// DataType returns the catalog key of the granule's product family, e.g.
// MCD43A1.006.
func (g ModisGranule) DataType() string {
	return g.Product + "." + g.Collection
}

/**
 * FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
 * keys must be fields of TileKey.Info (ZONE, LATITUDE_BAND, GRID_SQUARE, TILE, YEAR, MONTH, DAY, INDEX)
 * or whatever map the caller provides
 */
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}
