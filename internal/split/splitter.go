package split

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/command"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/logger"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/proj"
)

// ErrDuplicateSplit means the same point was already inserted into the same
// way during this run
var ErrDuplicateSplit = errors.New("way already split at this point")

// Result describes one completed insert-and-split transaction
type Result struct {
	// Node is the newly created node at the projected position
	Node *arena.Node
	// PrefixID is the child way ending at Node
	PrefixID int64
	// SuffixID is the child way starting at Node
	SuffixID int64
}

// Engine inserts nodes into ways and divides the ways at the inserted node.
// Every insert appends its edits to the shared command log.
type Engine struct {
	ds  *arena.Dataset
	log *command.Log
	tf  *proj.Transformer

	done map[splitKey]bool
}

type splitKey struct {
	wayID    int64
	lat, lon int64 // fixed-point, 1e7
}

// NewEngine creates a split engine over the dataset and command log
func NewEngine(ds *arena.Dataset, log *command.Log, tf *proj.Transformer) *Engine {
	return &Engine{
		ds:   ds,
		log:  log,
		tf:   tf,
		done: make(map[splitKey]bool),
	}
}

// Insert projects point onto the way, creates a node at the projected
// position, and splits the way there. Exactly one new node and one split are
// produced per call; repeating the same way/point pair is rejected.
//
// The log receives AddNode, then ReplaceWayNodes, then SplitWay, in that
// order, so reverse-order undo restores the parent way intact.
func (e *Engine) Insert(wayID int64, point orb.Point) (*Result, error) {
	key := splitKey{
		wayID: wayID,
		lat:   int64(point.Lat() * 1e7),
		lon:   int64(point.Lon() * 1e7),
	}
	if e.done[key] {
		return nil, fmt.Errorf("way %d at (%.7f, %.7f): %w",
			wayID, point.Lat(), point.Lon(), ErrDuplicateSplit)
	}

	way, err := e.ds.Way(wayID)
	if err != nil {
		return nil, err
	}
	line, err := e.ds.Geometry(way)
	if err != nil {
		return nil, err
	}

	projection, err := Project(line, point, e.tf)
	if err != nil {
		return nil, fmt.Errorf("project onto way %d: %w", wayID, err)
	}

	node := &arena.Node{
		ID:    e.ds.NewID(),
		Point: projection.Point,
	}

	newNodes := make([]int64, 0, len(way.Nodes)+1)
	newNodes = append(newNodes, way.Nodes[:projection.SegmentIndex+1]...)
	newNodes = append(newNodes, node.ID)
	newNodes = append(newNodes, way.Nodes[projection.SegmentIndex+1:]...)

	if err := e.log.Append(&command.AddNode{Node: node}); err != nil {
		return nil, err
	}
	if err := e.log.Append(&command.ReplaceWayNodes{WayID: wayID, NewNodes: newNodes}); err != nil {
		return nil, err
	}

	splitCmd := &command.SplitWay{WayID: wayID, SplitNode: node.ID}
	if err := e.log.Append(splitCmd); err != nil {
		return nil, fmt.Errorf("split way %d: %w", wayID, err)
	}
	prefixID, suffixID := splitCmd.PrefixID(), splitCmd.SuffixID()
	e.done[key] = true

	logger.Get().Debug("Way split",
		zap.Int64("way", wayID),
		zap.Int64("node", node.ID),
		zap.Int64("prefix", prefixID),
		zap.Int64("suffix", suffixID),
		zap.Float64("distance_m", projection.Distance))

	return &Result{
		Node:     node,
		PrefixID: prefixID,
		SuffixID: suffixID,
	}, nil
}
