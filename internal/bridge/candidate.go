// Package bridge drives the per-candidate decision procedure that marks a
// chain of road ways as a single bridge structure: resolve the candidate's
// endpoints to ways, split the ways at the endpoint coordinates, decide
// which split results represent the bridge, and enqueue the tag edits.
package bridge

import (
	"github.com/paulmach/orb"
)

// Tag vocabulary applied to bridge ways
const (
	BridgeTag   = "bridge"
	BridgeValue = "yes"
	BridgeIDTag = "bridge:id"
)

// Endpoint is one approximate end of a bridge structure
type Endpoint struct {
	// Point is the split coordinate (lon/lat). Undefined when Missing.
	Point orb.Point
	// WayID hints which way the point lies on; 0 means no hint
	WayID int64
	// Missing marks an endpoint the upstream pipeline could not place
	Missing bool
}

// Candidate is one bridge structure to be represented in the dataset
type Candidate struct {
	// BridgeID is the upstream structure identifier (e.g. NBI structure
	// number); written as the bridge:id tag when present
	BridgeID string
	// SeedWayID is the way the upstream pipeline originally associated the
	// bridge with; the last-resort target when no endpoint is usable
	SeedWayID int64
	// Endpoints holds one or two endpoint specs in order
	Endpoints []Endpoint
	// Chain lists way ids known to lie between the endpoints; when present
	// every listed way is tagged regardless of the endpoint split outcomes
	Chain []int64
}

// Usable returns the endpoints that actually carry a coordinate
func (c *Candidate) Usable() []Endpoint {
	usable := make([]Endpoint, 0, len(c.Endpoints))
	for _, e := range c.Endpoints {
		if !e.Missing {
			usable = append(usable, e)
		}
	}
	return usable
}
