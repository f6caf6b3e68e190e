// Package osc renders a completed command log as an OsmChange document, the
// format host editors and upload pipelines consume. Created primitives keep
// their negative placeholder ids so the applier can renumber them.
package osc

import (
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/osm"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/command"
)

const generator = "edit-osm-add-missing-bridge"

// Marshal builds an osmChange from the log and the arena's end state:
// created nodes and split children go in <create>, surviving tagged ways in
// <modify>, retired split parents in <delete>.
func Marshal(ds *arena.Dataset, log *command.Log) (*osm.Change, error) {
	var createdNodes []int64
	replaced := make(map[int64]bool)
	tagged := make(map[int64]bool)

	for _, cmd := range log.Commands() {
		switch c := cmd.(type) {
		case *command.AddNode:
			createdNodes = append(createdNodes, c.Node.ID)
		case *command.ReplaceWayNodes:
			replaced[c.WayID] = true
		case *command.SetTag:
			tagged[c.WayID] = true
		}
	}

	change := &osm.Change{
		Version:   "0.6",
		Generator: generator,
		Create:    &osm.OSM{},
		Modify:    &osm.OSM{},
		Delete:    &osm.OSM{},
	}

	for _, id := range createdNodes {
		n, err := ds.Node(id)
		if err != nil {
			return nil, fmt.Errorf("created node missing from arena: %w", err)
		}
		change.Create.Nodes = append(change.Create.Nodes, &osm.Node{
			ID:  osm.NodeID(n.ID),
			Lat: n.Point.Lat(),
			Lon: n.Point.Lon(),
		})
	}

	// Split children are the ways born during this run; they carry the
	// synthetic negative ids.
	var children []*arena.Way
	for _, w := range ds.Ways() {
		if w.ID < 0 {
			children = append(children, w)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID > children[j].ID })
	for _, w := range children {
		change.Create.Ways = append(change.Create.Ways, toOSMWay(w))
	}

	// Ways tagged in place survive with their upstream id.
	var modified []int64
	for id := range tagged {
		if id > 0 && ds.HasWay(id) {
			modified = append(modified, id)
		}
	}
	sort.Slice(modified, func(i, j int) bool { return modified[i] < modified[j] })
	for _, id := range modified {
		w, err := ds.Way(id)
		if err != nil {
			return nil, err
		}
		change.Modify.Ways = append(change.Modify.Ways, toOSMWay(w))
	}

	// Replaced ways that are gone from the arena were retired by a split.
	var deleted []int64
	for id := range replaced {
		if id > 0 && !ds.HasWay(id) {
			deleted = append(deleted, id)
		}
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })
	for _, id := range deleted {
		change.Delete.Ways = append(change.Delete.Ways, &osm.Way{ID: osm.WayID(id)})
	}

	return change, nil
}

// Write renders the change document to path. A .gz suffix enables gzip
// compression.
func Write(path string, ds *arena.Dataset, log *command.Log) error {
	change, err := Marshal(ds, log)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create change file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(change); err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	return enc.Flush()
}

// toOSMWay converts an arena way into the wire representation with tags in
// stable key order
func toOSMWay(w *arena.Way) *osm.Way {
	out := &osm.Way{ID: osm.WayID(w.ID)}
	for _, id := range w.Nodes {
		out.Nodes = append(out.Nodes, osm.WayNode{ID: osm.NodeID(id)})
	}

	keys := make([]string, 0, len(w.Tags))
	for k := range w.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Tags = append(out.Tags, osm.Tag{Key: k, Value: w.Tags[k]})
	}
	return out
}
