package spatial

import (
	"github.com/tidwall/rtree"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/geo"
)

// Index is an rtree over way bounding boxes, used to resolve candidate
// coordinates to nearby ways within a bounded search radius.
type Index struct {
	tree rtree.RTreeG[int64]
}

// NewIndex creates an empty spatial index
func NewIndex() *Index {
	return &Index{}
}

// Insert adds a way's bounding box to the index
func (ix *Index) Insert(wayID int64, minLon, minLat, maxLon, maxLat float64) {
	ix.tree.Insert(
		[2]float64{minLon, minLat},
		[2]float64{maxLon, maxLat},
		wayID,
	)
}

// Search returns the ids of all ways whose bounding boxes intersect the
// query bbox
func (ix *Index) Search(minLon, minLat, maxLon, maxLat float64) []int64 {
	result := make([]int64, 0)
	ix.tree.Search(
		[2]float64{minLon, minLat},
		[2]float64{maxLon, maxLat},
		func(min, max [2]float64, wayID int64) bool {
			result = append(result, wayID)
			return true
		},
	)
	return result
}

// SearchNearPoint returns the ids of ways whose bounding boxes fall within
// radiusMeters of the point (lon, lat)
func (ix *Index) SearchNearPoint(lon, lat, radiusMeters float64) []int64 {
	dLon, dLat := geo.MetersToDegrees(lat, radiusMeters)
	return ix.Search(lon-dLon, lat-dLat, lon+dLon, lat+dLat)
}

// Len returns the number of indexed ways
func (ix *Index) Len() int {
	return ix.tree.Len()
}
