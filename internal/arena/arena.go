package arena

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/spatial"
)

var (
	// ErrNoDataset means there is nothing to operate on; it aborts the batch
	ErrNoDataset = errors.New("no active dataset")
	// ErrWayNotFound means a way id is absent from the dataset
	ErrWayNotFound = errors.New("way not found")
	// ErrNodeNotFound means a node id is absent from the dataset
	ErrNodeNotFound = errors.New("node not found")
)

// Node is a geographic point with an id. Point is lon/lat ordered.
type Node struct {
	ID    int64
	Point orb.Point
}

// Way is an ordered polyline of node references carrying key/value tags.
// Ways are never mutated in place: every transformation produces new Way
// records and retires the old id.
type Way struct {
	ID    int64
	Nodes []int64
	Tags  map[string]string
}

// FirstNode returns the id of the way's first node
func (w *Way) FirstNode() int64 {
	return w.Nodes[0]
}

// LastNode returns the id of the way's last node
func (w *Way) LastNode() int64 {
	return w.Nodes[len(w.Nodes)-1]
}

// HasTag reports whether the way carries the given key/value pair
func (w *Way) HasTag(key, value string) bool {
	return w.Tags[key] == value
}

// SharedEndpoint returns the node id shared between the endpoints of w and
// other, if any. When both endpoints match, the first node of w wins.
func (w *Way) SharedEndpoint(other *Way) (int64, bool) {
	wf, wl := w.FirstNode(), w.LastNode()
	of, ol := other.FirstNode(), other.LastNode()

	if wf == of || wf == ol {
		return wf, true
	}
	if wl == of || wl == ol {
		return wl, true
	}
	return 0, false
}

// CloneTags returns a copy of the way's tag map
func (w *Way) CloneTags() map[string]string {
	tags := make(map[string]string, len(w.Tags))
	for k, v := range w.Tags {
		tags[k] = v
	}
	return tags
}

// Dataset is an in-memory arena of ways and nodes addressed by integer ids.
// Ids loaded from the external dataset are positive; primitives created
// during a run get negative ids so they can never collide with upstream data.
type Dataset struct {
	nodes map[int64]*Node
	ways  map[int64]*Way
	index *spatial.Index

	nextID int64 // next synthetic id (negative, descending)
}

// NewDataset creates an empty dataset
func NewDataset() *Dataset {
	return &Dataset{
		nodes:  make(map[int64]*Node),
		ways:   make(map[int64]*Way),
		index:  spatial.NewIndex(),
		nextID: -1,
	}
}

// NewID allocates a fresh synthetic id for a node or way created by an edit
func (d *Dataset) NewID() int64 {
	id := d.nextID
	d.nextID--
	return id
}

// AddNode inserts a node into the arena
func (d *Dataset) AddNode(n *Node) {
	d.nodes[n.ID] = n
}

// RemoveNode retires a node id from the arena
func (d *Dataset) RemoveNode(id int64) {
	delete(d.nodes, id)
}

// AddWay inserts a way into the arena and indexes its bounding box
func (d *Dataset) AddWay(w *Way) error {
	if len(w.Nodes) < 2 {
		return fmt.Errorf("way %d has %d nodes, need at least 2", w.ID, len(w.Nodes))
	}
	d.ways[w.ID] = w

	bound, err := d.wayBound(w)
	if err != nil {
		return err
	}
	d.index.Insert(w.ID, bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat())
	return nil
}

// RemoveWay retires a way id from the arena. The rtree keeps the stale entry;
// lookups always go back through the way map, so retired ids just drop out of
// search results.
func (d *Dataset) RemoveWay(id int64) {
	delete(d.ways, id)
}

// Node returns the node with the given id
func (d *Dataset) Node(id int64) (*Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	return n, nil
}

// Way returns the way with the given id
func (d *Dataset) Way(id int64) (*Way, error) {
	w, ok := d.ways[id]
	if !ok {
		return nil, fmt.Errorf("way %d: %w", id, ErrWayNotFound)
	}
	return w, nil
}

// HasWay reports whether the way id is present
func (d *Dataset) HasWay(id int64) bool {
	_, ok := d.ways[id]
	return ok
}

// Ways returns all live ways. Order is not defined.
func (d *Dataset) Ways() []*Way {
	ways := make([]*Way, 0, len(d.ways))
	for _, w := range d.ways {
		ways = append(ways, w)
	}
	return ways
}

// NodeCount returns the number of nodes in the arena
func (d *Dataset) NodeCount() int {
	return len(d.nodes)
}

// WayCount returns the number of live ways in the arena
func (d *Dataset) WayCount() int {
	return len(d.ways)
}

// Geometry resolves a way's node references into its polyline
func (d *Dataset) Geometry(w *Way) ([]orb.Point, error) {
	line := make([]orb.Point, len(w.Nodes))
	for i, id := range w.Nodes {
		n, err := d.Node(id)
		if err != nil {
			return nil, err
		}
		line[i] = n.Point
	}
	return line, nil
}

// WaysNear returns the live ways whose bounding boxes fall within
// radiusMeters of the point (lon, lat)
func (d *Dataset) WaysNear(lon, lat, radiusMeters float64) []*Way {
	ids := d.index.SearchNearPoint(lon, lat, radiusMeters)
	ways := make([]*Way, 0, len(ids))
	for _, id := range ids {
		if w, ok := d.ways[id]; ok {
			ways = append(ways, w)
		}
	}
	return ways
}

// SplitWay retires the parent way and installs two child ways sharing the
// node at splitNode. The prefix child ends at splitNode, the suffix child
// starts at it. Children inherit the parent's tags. Returns the child ids.
func (d *Dataset) SplitWay(parentID, splitNode int64) (prefixID, suffixID int64, err error) {
	parent, err := d.Way(parentID)
	if err != nil {
		return 0, 0, err
	}

	at := -1
	for i, id := range parent.Nodes {
		if id == splitNode {
			at = i
			break
		}
	}
	if at <= 0 || at >= len(parent.Nodes)-1 {
		return 0, 0, fmt.Errorf("node %d is not an interior node of way %d", splitNode, parentID)
	}

	prefix := &Way{
		ID:    d.NewID(),
		Nodes: append([]int64(nil), parent.Nodes[:at+1]...),
		Tags:  parent.CloneTags(),
	}
	suffix := &Way{
		ID:    d.NewID(),
		Nodes: append([]int64(nil), parent.Nodes[at:]...),
		Tags:  parent.CloneTags(),
	}

	d.RemoveWay(parentID)
	if err := d.AddWay(prefix); err != nil {
		return 0, 0, err
	}
	if err := d.AddWay(suffix); err != nil {
		return 0, 0, err
	}
	return prefix.ID, suffix.ID, nil
}

// wayBound computes a way's bounding box from its node coordinates
func (d *Dataset) wayBound(w *Way) (orb.Bound, error) {
	line, err := d.Geometry(w)
	if err != nil {
		return orb.Bound{}, err
	}
	bound := orb.MultiPoint(line).Bound()
	return bound, nil
}
