package geometry

import (
	"fmt"
	"runtime"

	"github.com/paulsmith/gogeos/geos"
)

// PreparedIntersector tests many coverages against one region of interest.
// The region geometry is prepared once, which makes it cheap to call
// IntersectsWKT for every record of a catalog.
type PreparedIntersector struct {
	region   *geos.Geometry
	prepared *geos.PGeometry
}

func NewPreparedIntersector(regionWKT string) (*PreparedIntersector, error) {
	region, err := geos.FromWKT(regionWKT)
	if err != nil {
		return nil, fmt.Errorf("NewPreparedIntersector.FromWKT: %w", err)
	}
	return &PreparedIntersector{region: region, prepared: region.Prepare()}, nil
}

// IntersectsWKT returns whether the coverage intersects the region.
func (p *PreparedIntersector) IntersectsWKT(coverageWKT string) (bool, error) {
	coverage, err := geos.FromWKT(coverageWKT)
	if err != nil {
		return false, fmt.Errorf("IntersectsWKT.FromWKT: %w", err)
	}
	intersects, err := p.prepared.Intersects(coverage)
	// the prepared geometry borrows the region's native object
	runtime.KeepAlive(p.region)
	if err != nil {
		return false, fmt.Errorf("IntersectsWKT.Intersects: %w", err)
	}
	return intersects, nil
}

// WKTIntersects is a one-shot intersection test between two WKT geometries.
func WKTIntersects(wkt1, wkt2 string) (bool, error) {
	g1, err := geos.FromWKT(wkt1)
	if err != nil {
		return false, fmt.Errorf("WKTIntersects.FromWKT: %w", err)
	}
	g2, err := geos.FromWKT(wkt2)
	if err != nil {
		return false, fmt.Errorf("WKTIntersects.FromWKT: %w", err)
	}
	intersects, err := g1.Intersects(g2)
	if err != nil {
		return false, fmt.Errorf("WKTIntersects.Intersects: %w", err)
	}
	return intersects, nil
}
