// Package split implements point-to-way projection and the node-insertion /
// way-split transformation built on it.
package split

import (
	"errors"
	"math"

	"github.com/paulmach/orb"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/geo"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/proj"
)

var (
	// ErrNoSegment means no segment of the polyline could receive the point
	ErrNoSegment = errors.New("no suitable segment found")
	// ErrSegmentTooShort means the polyline has fewer than 2 points
	ErrSegmentTooShort = errors.New("polyline has fewer than 2 points")
)

// Projection is the result of projecting a query point onto a polyline
type Projection struct {
	// SegmentIndex is the index of the winning segment; the projected point
	// lies between polyline[SegmentIndex] and polyline[SegmentIndex+1]
	SegmentIndex int
	// Point is the projected point in geographic coordinates
	Point orb.Point
	// Distance is the great-circle distance in meters from the query point
	// to the projected point
	Distance float64
}

// Project finds the closest point on the polyline to the query point. The
// clamped parametric projection runs in the planar frame of tf; the winning
// segment is chosen by true great-circle distance measured back in the
// geographic frame. Ties resolve to the lowest segment index.
func Project(line []orb.Point, query orb.Point, tf *proj.Transformer) (Projection, error) {
	if len(line) < 2 {
		return Projection{}, ErrSegmentTooShort
	}

	best := Projection{SegmentIndex: -1, Distance: math.Inf(1)}
	queryPlanar := tf.ToPlanar(query)

	for i := 0; i < len(line)-1; i++ {
		a := tf.ToPlanar(line[i])
		b := tf.ToPlanar(line[i+1])

		onSegment := closestPointOnSegment(a, b, queryPlanar)
		candidate := tf.ToGeographic(onSegment)
		distance := geo.GreatCircleDistance(query, candidate)

		if distance < best.Distance {
			best = Projection{SegmentIndex: i, Point: candidate, Distance: distance}
		}
	}

	if best.SegmentIndex == -1 {
		return Projection{}, ErrNoSegment
	}
	return best, nil
}

// closestPointOnSegment returns the point on segment ab closest to p, with
// the parametric position clamped to the segment bounds
func closestPointOnSegment(a, b, p orb.Point) orb.Point {
	dx := b.X() - a.X()
	dy := b.Y() - a.Y()

	// Zero-length segment degenerates to its single point
	if dx == 0 && dy == 0 {
		return a
	}

	t := ((p.X()-a.X())*dx + (p.Y()-a.Y())*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return orb.Point{a.X() + t*dx, a.Y() + t*dy}
}
