package proj

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// SRID constants for common projections
const (
	SRID4326 = 4326 // WGS84 (lat/lon)
	SRID3857 = 3857 // Web Mercator
)

// Transformer converts coordinates between the geographic WGS84 frame and a
// planar working projection. Segment projection math runs in the planar
// frame; distances are always measured back in the geographic frame.
type Transformer struct {
	SourceSRID int
	TargetSRID int
}

// NewTransformer creates a transformer from source to target SRID
func NewTransformer(sourceSRID, targetSRID int) (*Transformer, error) {
	if sourceSRID != SRID4326 {
		return nil, fmt.Errorf("unsupported source SRID: %d (only 4326 supported)", sourceSRID)
	}
	if targetSRID != SRID4326 && targetSRID != SRID3857 {
		return nil, fmt.Errorf("unsupported target SRID: %d (only 4326 and 3857 supported)", targetSRID)
	}

	return &Transformer{
		SourceSRID: sourceSRID,
		TargetSRID: targetSRID,
	}, nil
}

// ToPlanar converts a geographic point (lon/lat) into the planar frame
func (t *Transformer) ToPlanar(p orb.Point) orb.Point {
	if t.SourceSRID == t.TargetSRID {
		return p
	}
	x, y := lonLatToWebMercator(p.Lon(), p.Lat())
	return orb.Point{x, y}
}

// ToGeographic converts a planar point back into lon/lat
func (t *Transformer) ToGeographic(p orb.Point) orb.Point {
	if t.SourceSRID == t.TargetSRID {
		return p
	}
	lon, lat := webMercatorToLonLat(p.X(), p.Y())
	return orb.Point{lon, lat}
}

// NeedsTransform returns true if transformation is required
func (t *Transformer) NeedsTransform() bool {
	return t.SourceSRID != t.TargetSRID
}

// Web Mercator constants
const (
	// Semi-major axis of WGS84 ellipsoid in meters
	earthRadius = 6378137.0
	// Maximum extent of Web Mercator
	maxExtent = 20037508.342789244
)

// lonLatToWebMercator converts WGS84 (lon, lat) to Web Mercator (x, y)
func lonLatToWebMercator(lon, lat float64) (x, y float64) {
	// Clamp latitude to avoid infinity at poles
	if lat > 85.06 {
		lat = 85.06
	} else if lat < -85.06 {
		lat = -85.06
	}

	x = lon * maxExtent / 180.0

	latRad := lat * math.Pi / 180.0
	y = math.Log(math.Tan(math.Pi/4.0+latRad/2.0)) * earthRadius

	return x, y
}

// webMercatorToLonLat converts Web Mercator (x, y) back to WGS84 (lon, lat)
func webMercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / maxExtent * 180.0

	latRad := 2.0*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2.0
	lat = latRad * 180.0 / math.Pi

	return lon, lat
}

// ParseSRID parses a projection string to SRID
// Accepts: "4326", "3857", "EPSG:4326", "EPSG:3857"
func ParseSRID(s string) (int, error) {
	switch s {
	case "4326", "EPSG:4326":
		return SRID4326, nil
	case "3857", "EPSG:3857":
		return SRID3857, nil
	default:
		return 0, fmt.Errorf("unsupported projection: %s (supported: 4326, 3857)", s)
	}
}
