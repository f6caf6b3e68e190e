package arena

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/config"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/logger"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/nodeindex"
)

// LoadOptions controls dataset ingestion
type LoadOptions struct {
	// HighwayOnly keeps only ways carrying a highway tag (road network)
	HighwayOnly bool
	// BBox drops ways with no node inside the box when set
	BBox *config.BBox
	// WorkDir is where the temporary node index file is written (PBF only)
	WorkDir string
	// Workers is the PBF decoder parallelism
	Workers int
}

// DefaultLoadOptions returns ingestion defaults
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		HighwayOnly: true,
		WorkDir:     os.TempDir(),
		Workers:     runtime.NumCPU(),
	}
}

// Load reads an OSM file into a fresh dataset. The format is chosen by
// extension: .pbf uses the two-pass mmap-indexed loader, anything else is
// parsed as OSM XML.
func Load(ctx context.Context, path string, opts LoadOptions) (*Dataset, error) {
	if strings.HasSuffix(path, ".pbf") {
		return LoadPBF(ctx, path, opts)
	}
	return LoadXML(ctx, path, opts)
}

// LoadPBF reads a .osm.pbf file in two passes: pass 1 streams node
// coordinates into a memory-mapped index, pass 2 streams ways and resolves
// their node references against the index. Only nodes referenced by kept
// ways are materialized in the arena.
func LoadPBF(ctx context.Context, path string, opts LoadOptions) (*Dataset, error) {
	log := logger.Get()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	indexPath := filepath.Join(opts.WorkDir, "bridge_node_index.bin")
	index, err := nodeindex.NewMmapIndex(indexPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		index.Close()
		os.Remove(indexPath)
	}()

	// Pass 1: node coordinates into the mmap index
	start := time.Now()
	var nodeCount int64

	scanner := osmpbf.New(ctx, f, opts.Workers)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		index.Put(int64(n.ID), n.Lat, n.Lon)
		nodeCount++
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 failed: %w", err)
	}
	scanner.Close()
	log.Info("Pass 1 complete",
		zap.Int64("nodes", nodeCount),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	// Pass 2: stream ways, resolve coordinates, build the arena
	start = time.Now()
	ds := NewDataset()

	wayChan := make(chan *osm.Way, 1024)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(wayChan)
		scanner := osmpbf.New(gctx, f, opts.Workers)
		defer scanner.Close()
		scanner.SkipNodes = true
		scanner.SkipRelations = true
		for scanner.Scan() {
			w, ok := scanner.Object().(*osm.Way)
			if !ok {
				continue
			}
			select {
			case wayChan <- w:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		for w := range wayChan {
			if err := addOSMWay(ds, w, index.Get, opts); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pass 2 failed: %w", err)
	}

	log.Info("Pass 2 complete",
		zap.Int("ways", ds.WayCount()),
		zap.Int("nodes", ds.NodeCount()),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	return ds, nil
}

// LoadXML reads a plain .osm XML file. XML extracts are small enough to hold
// every node in memory, so no index file is needed.
func LoadXML(ctx context.Context, path string, opts LoadOptions) (*Dataset, error) {
	log := logger.Get()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	start := time.Now()
	coords := make(map[int64][2]float64)
	var ways []*osm.Way

	scanner := osmxml.New(ctx, f)
	defer scanner.Close()
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			coords[int64(o.ID)] = [2]float64{o.Lat, o.Lon}
		case *osm.Way:
			ways = append(ways, o)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse OSM XML: %w", err)
	}

	ds := NewDataset()
	lookup := func(id int64) (float64, float64, bool) {
		c, ok := coords[id]
		return c[0], c[1], ok
	}
	for _, w := range ways {
		if err := addOSMWay(ds, w, lookup, opts); err != nil {
			return nil, err
		}
	}

	log.Info("Dataset loaded",
		zap.Int("ways", ds.WayCount()),
		zap.Int("nodes", ds.NodeCount()),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	return ds, nil
}

// addOSMWay converts one upstream way into the arena, resolving node
// coordinates through lookup. Ways with unresolvable nodes are dropped; a
// clipped extract routinely references nodes outside its bounds.
func addOSMWay(ds *Dataset, w *osm.Way, lookup func(int64) (float64, float64, bool), opts LoadOptions) error {
	tags := w.Tags.Map()
	if opts.HighwayOnly {
		if _, ok := tags["highway"]; !ok {
			return nil
		}
	}
	if len(w.Nodes) < 2 {
		return nil
	}

	nodeIDs := make([]int64, 0, len(w.Nodes))
	points := make([]orb.Point, 0, len(w.Nodes))
	for _, ref := range w.Nodes {
		lat, lon, ok := lookup(int64(ref.ID))
		if !ok {
			logger.Get().Debug("Dropping way with unresolved node",
				zap.Int64("way", int64(w.ID)),
				zap.Int64("node", int64(ref.ID)))
			return nil
		}
		nodeIDs = append(nodeIDs, int64(ref.ID))
		points = append(points, orb.Point{lon, lat})
	}

	if opts.BBox != nil && opts.BBox.IsSet {
		inside := false
		for _, p := range points {
			if opts.BBox.Contains(p.Lat(), p.Lon()) {
				inside = true
				break
			}
		}
		if !inside {
			return nil
		}
	}

	for i, id := range nodeIDs {
		ds.AddNode(&Node{ID: id, Point: points[i]})
	}
	return ds.AddWay(&Way{
		ID:    int64(w.ID),
		Nodes: nodeIDs,
		Tags:  tags,
	})
}
