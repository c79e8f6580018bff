package geometry

import (
	"fmt"
	"math"
)

// WGS84 ellipsoid
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
)

// UTMToWGS84 converts easting/northing in the given UTM zone to lon/lat
// degrees. The transverse Mercator inverse uses the Krüger series, accurate
// to well below a millimeter over a UTM zone.
func UTMToWGS84(zone int, south bool, easting, northing float64) (lon, lat float64) {
	const k0 = 0.9996

	n := flattening / (2 - flattening)
	n2 := n * n
	n3 := n2 * n
	radius := semiMajorAxis / (1 + n) * (1 + n2/4 + n3*n/64)

	x := easting - 500000.0
	y := northing
	if south {
		y -= 10000000.0
	}

	xi := y / (k0 * radius)
	eta := x / (k0 * radius)

	beta := [3]float64{
		n/2 - 2.0/3*n2 + 37.0/96*n3,
		n2/48 + n3/15,
		17.0 / 480 * n3,
	}
	xiP, etaP := xi, eta
	for j := 0; j < 3; j++ {
		xiP -= beta[j] * math.Sin(2*float64(j+1)*xi) * math.Cosh(2*float64(j+1)*eta)
		etaP -= beta[j] * math.Cos(2*float64(j+1)*xi) * math.Sinh(2*float64(j+1)*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))

	delta := [3]float64{
		2*n - 2.0/3*n2 - 2*n3,
		7.0/3*n2 - 8.0/5*n3,
		56.0 / 15 * n3,
	}
	latR := chi
	for j := 0; j < 3; j++ {
		latR += delta[j] * math.Sin(2*float64(j+1)*chi)
	}

	centralMeridian := float64(zone)*6 - 183
	lon = centralMeridian + math.Atan2(math.Sinh(etaP), math.Cos(xiP))*180/math.Pi
	lat = latR * 180 / math.Pi
	return lon, lat
}

// MODIS sinusoidal grid (as used by the land products on LP DAAC)
const (
	sinusoidalTile   = 463.31271653 * 2400 // tile width in projection meters
	sinusoidalLeft   = -20015109.354
	sinusoidalTop    = 10007554.677
	sinusoidalRadius = 6371007.181
)

// SinusoidalToWGS84 converts MODIS sinusoidal x/y meters to lon/lat degrees.
func SinusoidalToWGS84(x, y float64) (lon, lat float64) {
	latR := y / sinusoidalRadius
	lonR := x / (sinusoidalRadius * math.Cos(latR))
	return lonR * 180 / math.Pi, latR * 180 / math.Pi
}

// ModisTileWKT returns the WGS84 footprint of the sinusoidal tile hXXvYY,
// corners ordered UL, UR, LR, LL.
func ModisTileWKT(h, v int) (string, error) {
	xMin := sinusoidalLeft + float64(h)*sinusoidalTile
	xMax := xMin + sinusoidalTile
	yMax := sinusoidalTop - float64(v)*sinusoidalTile
	yMin := yMax - sinusoidalTile

	ulLon, ulLat := SinusoidalToWGS84(xMin, yMax)
	urLon, urLat := SinusoidalToWGS84(xMax, yMax)
	lrLon, lrLat := SinusoidalToWGS84(xMax, yMin)
	llLon, llLat := SinusoidalToWGS84(xMin, yMin)

	wkt, err := PolygonWKT([2]float64{ulLon, ulLat}, [2]float64{urLon, urLat}, [2]float64{lrLon, lrLat}, [2]float64{llLon, llLat})
	if err != nil {
		return "", fmt.Errorf("ModisTileWKT.%w", err)
	}
	return wkt, nil
}

// CellWKT returns the one-degree cell with the given south-west corner.
func CellWKT(lon, lat int) (string, error) {
	flon, flat := float64(lon), float64(lat)
	wkt, err := PolygonWKT([2]float64{flon, flat + 1}, [2]float64{flon + 1, flat + 1}, [2]float64{flon + 1, flat}, [2]float64{flon, flat})
	if err != nil {
		return "", fmt.Errorf("CellWKT.%w", err)
	}
	return wkt, nil
}
