package command

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
)

func testDataset(t *testing.T) *arena.Dataset {
	t.Helper()

	ds := arena.NewDataset()
	ds.AddNode(&arena.Node{ID: 10, Point: orb.Point{0, 0}})
	ds.AddNode(&arena.Node{ID: 11, Point: orb.Point{1, 1}})
	if err := ds.AddWay(&arena.Way{
		ID:    100,
		Nodes: []int64{10, 11},
		Tags:  map[string]string{"highway": "residential"},
	}); err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestAppendApplies(t *testing.T) {
	ds := testDataset(t)
	log := NewLog(ds)

	node := &arena.Node{ID: -1, Point: orb.Point{0.5, 0.5}}
	if err := log.Append(&AddNode{Node: node}); err != nil {
		t.Fatal(err)
	}
	if _, err := ds.Node(-1); err != nil {
		t.Errorf("node -1 not in arena after append: %v", err)
	}

	if err := log.Append(&ReplaceWayNodes{WayID: 100, NewNodes: []int64{10, -1, 11}}); err != nil {
		t.Fatal(err)
	}
	w, err := ds.Way(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Nodes) != 3 || w.Nodes[1] != -1 {
		t.Errorf("way nodes = %v, want [10 -1 11]", w.Nodes)
	}

	if log.Len() != 2 {
		t.Errorf("log length = %d, want 2", log.Len())
	}
}

func TestReplaceWayNodesRequiresExistingNodes(t *testing.T) {
	ds := testDataset(t)
	log := NewLog(ds)

	// Node -5 was never added; the replace must fail and record nothing
	err := log.Append(&ReplaceWayNodes{WayID: 100, NewNodes: []int64{10, -5, 11}})
	if !errors.Is(err, arena.ErrNodeNotFound) {
		t.Fatalf("error = %v, want ErrNodeNotFound", err)
	}
	if log.Len() != 0 {
		t.Errorf("failed append recorded %d commands", log.Len())
	}

	w, _ := ds.Way(100)
	if len(w.Nodes) != 2 {
		t.Errorf("way nodes = %v, failed replace must not mutate", w.Nodes)
	}
}

func TestSetTagIdempotent(t *testing.T) {
	ds := testDataset(t)
	log := NewLog(ds)

	for i := 0; i < 3; i++ {
		if err := log.Append(&SetTag{WayID: 100, Key: "bridge", Value: "yes"}); err != nil {
			t.Fatal(err)
		}
	}

	// Only the first append changes anything; repeats are silent no-ops
	if log.Len() != 1 {
		t.Errorf("log length = %d, want 1", log.Len())
	}
	w, _ := ds.Way(100)
	if !w.HasTag("bridge", "yes") {
		t.Error("bridge=yes not set on way")
	}
}

func TestSetTagOverwrite(t *testing.T) {
	ds := testDataset(t)
	log := NewLog(ds)

	if err := log.Append(&SetTag{WayID: 100, Key: "highway", Value: "tertiary"}); err != nil {
		t.Fatal(err)
	}
	w, _ := ds.Way(100)
	if w.Tags["highway"] != "tertiary" {
		t.Errorf("highway = %q, want tertiary", w.Tags["highway"])
	}
	if log.Len() != 1 {
		t.Errorf("log length = %d, want 1", log.Len())
	}
}

func TestUndoReverseOrder(t *testing.T) {
	ds := testDataset(t)
	log := NewLog(ds)

	node := &arena.Node{ID: -1, Point: orb.Point{0.5, 0.5}}
	cmds := []Command{
		&AddNode{Node: node},
		&ReplaceWayNodes{WayID: 100, NewNodes: []int64{10, -1, 11}},
		&SetTag{WayID: 100, Key: "bridge", Value: "yes"},
	}
	for _, cmd := range cmds {
		if err := log.Append(cmd); err != nil {
			t.Fatal(err)
		}
	}

	// Undo the tag only
	if err := log.Undo(1); err != nil {
		t.Fatal(err)
	}
	w, _ := ds.Way(100)
	if _, ok := w.Tags["bridge"]; ok {
		t.Error("bridge tag survived undo")
	}
	if len(w.Nodes) != 3 {
		t.Errorf("way nodes = %v, replace must still hold", w.Nodes)
	}
	if log.Len() != 2 {
		t.Errorf("log length = %d, want 2", log.Len())
	}

	// Undo everything that remains
	if err := log.Undo(-1); err != nil {
		t.Fatal(err)
	}
	w, _ = ds.Way(100)
	if len(w.Nodes) != 2 || w.Nodes[0] != 10 || w.Nodes[1] != 11 {
		t.Errorf("way nodes = %v, want original [10 11]", w.Nodes)
	}
	if _, err := ds.Node(-1); !errors.Is(err, arena.ErrNodeNotFound) {
		t.Errorf("added node lookup after undo = %v, want ErrNodeNotFound", err)
	}
	if log.Len() != 0 {
		t.Errorf("log length = %d, want 0", log.Len())
	}
}

func TestSplitWayRoundTrip(t *testing.T) {
	ds := testDataset(t)
	ds.AddNode(&arena.Node{ID: 12, Point: orb.Point{2, 2}})
	w, _ := ds.Way(100)
	w.Nodes = []int64{10, 11, 12}

	log := NewLog(ds)
	cmd := &SplitWay{WayID: 100, SplitNode: 11}
	if err := log.Append(cmd); err != nil {
		t.Fatal(err)
	}

	if ds.HasWay(100) {
		t.Error("parent way still live after split")
	}
	for _, id := range []int64{cmd.PrefixID(), cmd.SuffixID()} {
		if !ds.HasWay(id) {
			t.Errorf("child way %d missing", id)
		}
	}

	if err := log.Undo(-1); err != nil {
		t.Fatal(err)
	}
	restored, err := ds.Way(100)
	if err != nil {
		t.Fatalf("parent way not restored: %v", err)
	}
	if len(restored.Nodes) != 3 {
		t.Errorf("restored way nodes = %v, want 3 nodes", restored.Nodes)
	}
	if ds.HasWay(cmd.PrefixID()) || ds.HasWay(cmd.SuffixID()) {
		t.Error("child ways survived undo")
	}
}

func TestSetTagUndoRestoresOldValue(t *testing.T) {
	ds := testDataset(t)
	log := NewLog(ds)

	if err := log.Append(&SetTag{WayID: 100, Key: "highway", Value: "service"}); err != nil {
		t.Fatal(err)
	}
	if err := log.Undo(1); err != nil {
		t.Fatal(err)
	}

	w, _ := ds.Way(100)
	if w.Tags["highway"] != "residential" {
		t.Errorf("highway = %q after undo, want residential", w.Tags["highway"])
	}
}
