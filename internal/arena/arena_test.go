package arena

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func gridDataset(t *testing.T) *Dataset {
	t.Helper()

	ds := NewDataset()
	for i, pt := range []orb.Point{{0, 0}, {0.001, 0}, {0.002, 0}, {1, 1}} {
		ds.AddNode(&Node{ID: int64(10 + i), Point: pt})
	}
	ways := []*Way{
		{ID: 100, Nodes: []int64{10, 11, 12}, Tags: map[string]string{"highway": "primary", "name": "A Road"}},
		{ID: 101, Nodes: []int64{12, 13}, Tags: map[string]string{"highway": "primary"}},
	}
	for _, w := range ways {
		if err := ds.AddWay(w); err != nil {
			t.Fatal(err)
		}
	}
	return ds
}

func TestNewIDDescending(t *testing.T) {
	ds := NewDataset()
	if got := ds.NewID(); got != -1 {
		t.Errorf("first synthetic id = %d, want -1", got)
	}
	if got := ds.NewID(); got != -2 {
		t.Errorf("second synthetic id = %d, want -2", got)
	}
}

func TestAddWayTooShort(t *testing.T) {
	ds := NewDataset()
	ds.AddNode(&Node{ID: 10})
	if err := ds.AddWay(&Way{ID: 100, Nodes: []int64{10}}); err == nil {
		t.Error("one-node way accepted")
	}
}

func TestLookupErrors(t *testing.T) {
	ds := NewDataset()

	if _, err := ds.Way(1); !errors.Is(err, ErrWayNotFound) {
		t.Errorf("Way error = %v, want ErrWayNotFound", err)
	}
	if _, err := ds.Node(1); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Node error = %v, want ErrNodeNotFound", err)
	}
}

func TestGeometry(t *testing.T) {
	ds := gridDataset(t)
	w, err := ds.Way(101)
	if err != nil {
		t.Fatal(err)
	}

	line, err := ds.Geometry(w)
	if err != nil {
		t.Fatal(err)
	}
	if len(line) != 2 || line[0] != (orb.Point{0.002, 0}) || line[1] != (orb.Point{1, 1}) {
		t.Errorf("geometry = %v", line)
	}
}

func TestSplitWay(t *testing.T) {
	ds := gridDataset(t)

	prefixID, suffixID, err := ds.SplitWay(100, 11)
	if err != nil {
		t.Fatal(err)
	}

	if ds.HasWay(100) {
		t.Error("parent way 100 still live after split")
	}
	prefix, err := ds.Way(prefixID)
	if err != nil {
		t.Fatal(err)
	}
	suffix, err := ds.Way(suffixID)
	if err != nil {
		t.Fatal(err)
	}

	if prefix.FirstNode() != 10 || prefix.LastNode() != 11 {
		t.Errorf("prefix nodes = %v, want [10 11]", prefix.Nodes)
	}
	if suffix.FirstNode() != 11 || suffix.LastNode() != 12 {
		t.Errorf("suffix nodes = %v, want [11 12]", suffix.Nodes)
	}

	// Tags are inherited as independent copies
	if prefix.Tags["name"] != "A Road" || suffix.Tags["name"] != "A Road" {
		t.Error("children did not inherit parent tags")
	}
	prefix.Tags["name"] = "B Road"
	if suffix.Tags["name"] != "A Road" {
		t.Error("children share one tag map")
	}
}

func TestSplitWayRejectsEndpoints(t *testing.T) {
	tests := []struct {
		name string
		node int64
	}{
		{name: "first node", node: 10},
		{name: "last node", node: 12},
		{name: "not on way", node: 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := gridDataset(t)
			if _, _, err := ds.SplitWay(100, tt.node); err == nil {
				t.Error("split at non-interior node accepted")
			}
			if !ds.HasWay(100) {
				t.Error("failed split retired the parent")
			}
		})
	}
}

func TestWaysNear(t *testing.T) {
	ds := gridDataset(t)

	// Way 100 runs along the equator near the origin; way 101 stretches
	// off toward (1,1), so only 100 should match a tight search there.
	near := ds.WaysNear(0.001, 0, 50)
	if !containsWay(near, 100) {
		t.Errorf("WaysNear(0.001, 0, 50m) = %v, want way 100", wayIDs(near))
	}

	far := ds.WaysNear(5, 5, 50)
	if len(far) != 0 {
		t.Errorf("WaysNear(5, 5, 50m) = %v, want none", wayIDs(far))
	}
}

func TestWaysNearSkipsRetired(t *testing.T) {
	ds := gridDataset(t)

	if _, _, err := ds.SplitWay(100, 11); err != nil {
		t.Fatal(err)
	}

	// The rtree still holds the parent's entry; results must not
	for _, w := range ds.WaysNear(0.001, 0, 50) {
		if w.ID == 100 {
			t.Error("retired way 100 returned from search")
		}
	}
}

func TestSharedEndpoint(t *testing.T) {
	a := &Way{ID: 1, Nodes: []int64{10, 11}}
	b := &Way{ID: 2, Nodes: []int64{11, 12}}
	c := &Way{ID: 3, Nodes: []int64{20, 21}}

	if node, ok := a.SharedEndpoint(b); !ok || node != 11 {
		t.Errorf("SharedEndpoint(a, b) = %d, %v, want 11, true", node, ok)
	}
	if node, ok := b.SharedEndpoint(a); !ok || node != 11 {
		t.Errorf("SharedEndpoint(b, a) = %d, %v, want 11, true", node, ok)
	}
	if _, ok := a.SharedEndpoint(c); ok {
		t.Error("disjoint ways reported a shared endpoint")
	}
}

func containsWay(ways []*Way, id int64) bool {
	for _, w := range ways {
		if w.ID == id {
			return true
		}
	}
	return false
}

func wayIDs(ways []*Way) []int64 {
	ids := make([]int64, len(ways))
	for i, w := range ways {
		ids[i] = w.ID
	}
	return ids
}
