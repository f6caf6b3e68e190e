package bridge

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/command"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/logger"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/proj"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/split"
)

var (
	// ErrAmbiguousBridgeWay means no split result matched the pivot, so the
	// bridge part of the road could not be identified
	ErrAmbiguousBridgeWay = errors.New("no split result matches the pivot node")
	// ErrNoPivot means the endpoint ways share no endpoint node
	ErrNoPivot = errors.New("ways share no common endpoint node")
	// ErrNoEndpoint means the candidate has no usable endpoint and no way
	// to fall back on
	ErrNoEndpoint = errors.New("candidate has no usable endpoint")
)

// DefaultSearchRadius bounds how far from a candidate coordinate a way may
// be and still count as "the way under the point", in meters
const DefaultSearchRadius = 5.0

// Tagger runs the per-candidate decision procedure
type Tagger struct {
	ds     *arena.Dataset
	log    *command.Log
	engine *split.Engine
	tf     *proj.Transformer

	// SearchRadius is the bounded radius for coordinate-to-way resolution
	SearchRadius float64
}

// NewTagger creates a tagger over the dataset, appending to log
func NewTagger(ds *arena.Dataset, log *command.Log, tf *proj.Transformer) *Tagger {
	return &Tagger{
		ds:           ds,
		log:          log,
		engine:       split.NewEngine(ds, log, tf),
		tf:           tf,
		SearchRadius: DefaultSearchRadius,
	}
}

// Process handles one candidate end to end. Any returned error is scoped to
// this candidate; edits already appended to the log remain valid.
func (t *Tagger) Process(c *Candidate) error {
	if t.ds == nil {
		return arena.ErrNoDataset
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("bridge %s: %w", c.BridgeID, ErrNoEndpoint)
	}

	usable := c.Usable()
	switch {
	case len(usable) == 0:
		t.tagChain(c)
		return t.fallback(c)
	case len(usable) == 1:
		return t.processSingle(c, usable[0])
	default:
		return t.processPair(c)
	}
}

// processSingle handles a candidate whose other endpoint is missing: split
// only the present endpoint and tag the child whose matching end touches the
// new node.
func (t *Tagger) processSingle(c *Candidate, e Endpoint) error {
	first := len(c.Endpoints) < 2 || !c.Endpoints[0].Missing

	way, viaSearch, err := t.resolveEndpoint(c, e)
	if err != nil {
		t.tagChain(c)
		if len(c.Chain) > 0 {
			// The chain still marks the structure; the unplaced endpoint
			// just loses its split.
			return nil
		}
		return err
	}
	if t.guarded(c, e, way, viaSearch) {
		t.tagChain(c)
		return nil
	}

	res, err := t.engine.Insert(way.ID, e.Point)
	if err != nil {
		logger.Get().Warn("Endpoint split failed, falling back to direct tag",
			zap.String("bridge", c.BridgeID),
			zap.Int64("way", way.ID),
			zap.Error(err))
		t.tagChain(c)
		return t.fallback(c)
	}

	// The suffix child starts at the new node, the prefix child ends at it.
	childID := res.SuffixID
	if !first {
		childID = res.PrefixID
	}
	child, err := t.ds.Way(childID)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", c.BridgeID, err)
	}
	if err := t.tagWay(child.ID, c.BridgeID); err != nil {
		return err
	}
	t.tagChain(c)

	logger.Get().Info("Bridge tagged from single endpoint",
		zap.String("bridge", c.BridgeID),
		zap.Int64("way", child.ID))
	return nil
}

// processPair handles a candidate with two placed endpoints, with or without
// an explicit chain of intermediate ways.
func (t *Tagger) processPair(c *Candidate) error {
	epA, epB := c.Endpoints[0], c.Endpoints[1]

	wayA, searchA, errA := t.resolveEndpoint(c, epA)
	wayB, searchB, errB := t.resolveEndpoint(c, epB)

	// Without a chain the endpoint ways are all there is: a candidate whose
	// coordinates resolve to nothing is skipped whole. With a chain the
	// chain is still tagged below, whatever became of the endpoints.
	if len(c.Chain) == 0 {
		if errA != nil {
			return errA
		}
		if errB != nil {
			return errB
		}
	}

	// Pivot: the node deciding which side of each split is the bridge. With
	// an explicit chain the pivots sit where the endpoint ways meet the
	// chain; without one the endpoint ways must meet each other.
	var pivotA, pivotB int64
	var pivotErrA, pivotErrB error
	if len(c.Chain) == 0 {
		pivot, ok := wayA.SharedEndpoint(wayB)
		if !ok {
			return fmt.Errorf("bridge %s: ways %d and %d: %w", c.BridgeID, wayA.ID, wayB.ID, ErrNoPivot)
		}
		pivotA, pivotB = pivot, pivot
	} else {
		if errA == nil {
			pivotA, pivotErrA = t.chainPivot(wayA, c.Chain[0])
		}
		if errB == nil {
			pivotB, pivotErrB = t.chainPivot(wayB, c.Chain[len(c.Chain)-1])
		}
	}

	splits := 0
	tagged := 0

	if errA == nil && pivotErrA == nil && !t.guarded(c, epA, wayA, searchA) {
		ok, err := t.insertAndTag(c, wayA.ID, epA, pivotA)
		if err != nil {
			logger.Get().Warn("First endpoint failed",
				zap.String("bridge", c.BridgeID),
				zap.Int64("way", wayA.ID),
				zap.Error(err))
		} else {
			splits++
			if ok {
				tagged++
			}
		}
	} else if pivotErrA != nil {
		logger.Get().Warn("First endpoint pivot unresolved",
			zap.String("bridge", c.BridgeID),
			zap.Error(pivotErrA))
	}

	// The first split may have retired the second endpoint's way when both
	// endpoints sat on the same way; re-resolve against the live dataset.
	if errB == nil && !t.ds.HasWay(wayB.ID) {
		wayB, searchB, errB = t.resolveEndpoint(c, epB)
	}

	if errB == nil && pivotErrB == nil && !t.guarded(c, epB, wayB, searchB) {
		ok, err := t.insertAndTag(c, wayB.ID, epB, pivotB)
		if err != nil {
			logger.Get().Warn("Second endpoint failed",
				zap.String("bridge", c.BridgeID),
				zap.Int64("way", wayB.ID),
				zap.Error(err))
		} else {
			splits++
			if ok {
				tagged++
			}
		}
	} else if pivotErrB != nil {
		logger.Get().Warn("Second endpoint pivot unresolved",
			zap.String("bridge", c.BridgeID),
			zap.Error(pivotErrB))
	}

	// Chain ways are tagged unconditionally, whatever became of the
	// endpoint splits.
	t.tagChain(c)

	if len(c.Chain) == 0 {
		if splits == 0 {
			return t.fallback(c)
		}
		if tagged == 0 {
			return fmt.Errorf("bridge %s: %w", c.BridgeID, ErrAmbiguousBridgeWay)
		}
	}
	return nil
}

// insertAndTag splits the way at the endpoint and tags the child whose
// endpoints are exactly the pivot node and the inserted node. Returns
// whether a child was tagged.
func (t *Tagger) insertAndTag(c *Candidate, wayID int64, e Endpoint, pivot int64) (bool, error) {
	res, err := t.engine.Insert(wayID, e.Point)
	if err != nil {
		return false, err
	}

	for _, childID := range []int64{res.PrefixID, res.SuffixID} {
		child, err := t.ds.Way(childID)
		if err != nil {
			continue
		}
		f, l := child.FirstNode(), child.LastNode()
		if (f == res.Node.ID && l == pivot) || (l == res.Node.ID && f == pivot) {
			if err := t.tagWay(child.ID, c.BridgeID); err != nil {
				return false, err
			}
			logger.Get().Info("Bridge way tagged",
				zap.String("bridge", c.BridgeID),
				zap.Int64("way", child.ID))
			return true, nil
		}
	}
	return false, nil
}

// resolveEndpoint maps an endpoint coordinate to a live way: first the hint,
// then the nearest way within the bounded search radius.
func (t *Tagger) resolveEndpoint(c *Candidate, e Endpoint) (*arena.Way, bool, error) {
	if e.WayID != 0 && t.ds.HasWay(e.WayID) {
		w, err := t.ds.Way(e.WayID)
		return w, false, err
	}

	nearby := t.ds.WaysNear(e.Point.Lon(), e.Point.Lat(), t.SearchRadius)

	var best *arena.Way
	bestDist := t.SearchRadius
	for _, w := range nearby {
		line, err := t.ds.Geometry(w)
		if err != nil {
			continue
		}
		p, err := split.Project(line, e.Point, t.tf)
		if err != nil {
			continue
		}
		if p.Distance <= bestDist {
			best = w
			bestDist = p.Distance
		}
	}

	if best == nil {
		return nil, false, fmt.Errorf("bridge %s: no way within %.1fm of (%.7f, %.7f): %w",
			c.BridgeID, t.SearchRadius, e.Point.Lat(), e.Point.Lon(), arena.ErrWayNotFound)
	}
	return best, true, nil
}

// guarded reports whether the endpoint must be skipped: its coordinate
// resolved to a way outside its own hint that already carries the bridge
// tag, meaning an earlier candidate in the batch produced it.
func (t *Tagger) guarded(c *Candidate, e Endpoint, w *arena.Way, viaSearch bool) bool {
	if !viaSearch || w.ID == e.WayID {
		return false
	}
	if !w.HasTag(BridgeTag, BridgeValue) {
		return false
	}
	logger.Get().Info("Skipping endpoint on already-tagged way",
		zap.String("bridge", c.BridgeID),
		zap.Int64("way", w.ID))
	return true
}

// chainPivot returns the node shared between an endpoint way and the
// adjacent chain way
func (t *Tagger) chainPivot(endpointWay *arena.Way, chainWayID int64) (int64, error) {
	chainWay, err := t.ds.Way(chainWayID)
	if err != nil {
		return 0, err
	}
	pivot, ok := endpointWay.SharedEndpoint(chainWay)
	if !ok {
		return 0, fmt.Errorf("ways %d and %d: %w", endpointWay.ID, chainWayID, ErrNoPivot)
	}
	return pivot, nil
}

// tagChain tags every way id listed in the candidate's chain. Absent ids are
// logged and skipped; the rest of the chain still gets tagged.
func (t *Tagger) tagChain(c *Candidate) {
	for _, id := range c.Chain {
		if !t.ds.HasWay(id) {
			logger.Get().Warn("Chain way not found",
				zap.String("bridge", c.BridgeID),
				zap.Int64("way", id))
			continue
		}
		if err := t.tagWay(id, c.BridgeID); err != nil {
			logger.Get().Warn("Failed to tag chain way",
				zap.String("bridge", c.BridgeID),
				zap.Int64("way", id),
				zap.Error(err))
		}
	}
}

// fallback tags the candidate's hinted way directly, with no geometry change
func (t *Tagger) fallback(c *Candidate) error {
	hints := make([]int64, 0, len(c.Endpoints)+1)
	for _, e := range c.Endpoints {
		hints = append(hints, e.WayID)
	}
	hints = append(hints, c.SeedWayID)

	for _, id := range hints {
		if id == 0 || !t.ds.HasWay(id) {
			continue
		}
		if err := t.tagWay(id, c.BridgeID); err != nil {
			return err
		}
		logger.Get().Info("Tagged hinted way without geometry change",
			zap.String("bridge", c.BridgeID),
			zap.Int64("way", id))
		return nil
	}
	return fmt.Errorf("bridge %s: no hinted way available: %w", c.BridgeID, arena.ErrWayNotFound)
}

// tagWay appends the bridge tag edits for one way
func (t *Tagger) tagWay(wayID int64, bridgeID string) error {
	if err := t.log.Append(&command.SetTag{WayID: wayID, Key: BridgeTag, Value: BridgeValue}); err != nil {
		return err
	}
	if bridgeID != "" {
		if err := t.log.Append(&command.SetTag{WayID: wayID, Key: BridgeIDTag, Value: bridgeID}); err != nil {
			return err
		}
	}
	return nil
}
