package split

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/command"
)

// twoNodeWay builds an arena holding the single way [N0(0,0), N1(1,1)]
func twoNodeWay(t *testing.T) (*arena.Dataset, *command.Log, *Engine) {
	t.Helper()

	ds := arena.NewDataset()
	ds.AddNode(&arena.Node{ID: 10, Point: orb.Point{0, 0}})
	ds.AddNode(&arena.Node{ID: 11, Point: orb.Point{1, 1}})
	if err := ds.AddWay(&arena.Way{
		ID:    100,
		Nodes: []int64{10, 11},
		Tags:  map[string]string{"highway": "residential", "name": "Main St"},
	}); err != nil {
		t.Fatal(err)
	}

	log := command.NewLog(ds)
	tf := planarFrame(t)
	return ds, log, NewEngine(ds, log, tf)
}

func TestInsertSplitsWay(t *testing.T) {
	ds, log, engine := twoNodeWay(t)

	res, err := engine.Insert(100, orb.Point{0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}

	// Parent is retired, two children replace it
	if ds.HasWay(100) {
		t.Error("parent way 100 should be retired")
	}
	prefix, err := ds.Way(res.PrefixID)
	if err != nil {
		t.Fatal(err)
	}
	suffix, err := ds.Way(res.SuffixID)
	if err != nil {
		t.Fatal(err)
	}

	wantPrefix := []int64{10, res.Node.ID}
	wantSuffix := []int64{res.Node.ID, 11}
	if !equalIDs(prefix.Nodes, wantPrefix) {
		t.Errorf("prefix nodes = %v, want %v", prefix.Nodes, wantPrefix)
	}
	if !equalIDs(suffix.Nodes, wantSuffix) {
		t.Errorf("suffix nodes = %v, want %v", suffix.Nodes, wantSuffix)
	}

	// Children inherit the parent's tags
	for _, child := range []*arena.Way{prefix, suffix} {
		if child.Tags["name"] != "Main St" || child.Tags["highway"] != "residential" {
			t.Errorf("child %d tags = %v, want parent's tags", child.ID, child.Tags)
		}
	}

	// Concatenating the children (dropping the duplicated split node)
	// reproduces the original sequence
	joined := append(append([]int64{}, prefix.Nodes...), suffix.Nodes[1:]...)
	want := []int64{10, res.Node.ID, 11}
	if !equalIDs(joined, want) {
		t.Errorf("joined children = %v, want %v", joined, want)
	}

	// Log ordering: AddNode, then ReplaceWayNodes, then SplitWay
	cmds := log.Commands()
	if len(cmds) != 3 {
		t.Fatalf("log has %d commands, want 3", len(cmds))
	}
	if _, ok := cmds[0].(*command.AddNode); !ok {
		t.Errorf("first command = %T, want *command.AddNode", cmds[0])
	}
	if _, ok := cmds[1].(*command.ReplaceWayNodes); !ok {
		t.Errorf("second command = %T, want *command.ReplaceWayNodes", cmds[1])
	}
	if _, ok := cmds[2].(*command.SplitWay); !ok {
		t.Errorf("third command = %T, want *command.SplitWay", cmds[2])
	}
}

func TestUndoRestoresSplitWay(t *testing.T) {
	ds, log, engine := twoNodeWay(t)

	res, err := engine.Insert(100, orb.Point{0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}

	if err := log.Undo(-1); err != nil {
		t.Fatalf("undo after split: %v", err)
	}

	// The parent way is back with its original node sequence
	w, err := ds.Way(100)
	if err != nil {
		t.Fatalf("parent way not restored: %v", err)
	}
	if !equalIDs(w.Nodes, []int64{10, 11}) {
		t.Errorf("restored way nodes = %v, want [10 11]", w.Nodes)
	}

	// The split children and the inserted node are gone
	if ds.HasWay(res.PrefixID) || ds.HasWay(res.SuffixID) {
		t.Error("split children survived undo")
	}
	if _, err := ds.Node(res.Node.ID); !errors.Is(err, arena.ErrNodeNotFound) {
		t.Errorf("inserted node lookup = %v, want ErrNodeNotFound", err)
	}
	if log.Len() != 0 {
		t.Errorf("log length = %d after full undo, want 0", log.Len())
	}
}

func TestInsertProjectedPosition(t *testing.T) {
	_, _, engine := twoNodeWay(t)

	res, err := engine.Insert(100, orb.Point{0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}

	// The query sits on the way up to projection distortion
	if dLon := res.Node.Point.Lon() - 0.5; dLon > 0.01 || dLon < -0.01 {
		t.Errorf("node lon = %f, want ~0.5", res.Node.Point.Lon())
	}
	if dLat := res.Node.Point.Lat() - 0.5; dLat > 0.01 || dLat < -0.01 {
		t.Errorf("node lat = %f, want ~0.5", res.Node.Point.Lat())
	}
}

func TestInsertDuplicateRejected(t *testing.T) {
	_, log, engine := twoNodeWay(t)

	if _, err := engine.Insert(100, orb.Point{0.5, 0.5}); err != nil {
		t.Fatal(err)
	}
	before := log.Len()

	_, err := engine.Insert(100, orb.Point{0.5, 0.5})
	if !errors.Is(err, ErrDuplicateSplit) {
		t.Errorf("second insert error = %v, want ErrDuplicateSplit", err)
	}
	if log.Len() != before {
		t.Errorf("duplicate insert appended %d commands", log.Len()-before)
	}
}

func TestInsertUnknownWay(t *testing.T) {
	_, _, engine := twoNodeWay(t)

	_, err := engine.Insert(999, orb.Point{0.5, 0.5})
	if !errors.Is(err, arena.ErrWayNotFound) {
		t.Errorf("error = %v, want ErrWayNotFound", err)
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
