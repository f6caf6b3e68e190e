// Package store reads a road network out of the "middle tables" an
// osm2pgsql-style importer maintains in PostgreSQL, as an alternative to
// loading a file extract. Coordinates in the tables are fixed-point
// integers (value × 10^7).
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/config"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/logger"
)

// nodeBatchSize bounds the id list per coordinate query
const nodeBatchSize = 10000

// MiddleSource is a PostgreSQL-backed dataset source
type MiddleSource struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

// NewMiddleSource connects to the database described by cfg
func NewMiddleSource(ctx context.Context, cfg *config.Config) (*MiddleSource, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &MiddleSource{cfg: cfg, pool: pool}, nil
}

// Close releases the connection pool
func (s *MiddleSource) Close() {
	s.pool.Close()
}

// LoadDataset reads ways and their node coordinates into a fresh arena
func (s *MiddleSource) LoadDataset(ctx context.Context, highwayOnly bool) (*arena.Dataset, error) {
	log := logger.Get()

	waysTable := fmt.Sprintf("%s.planet_osm_ways", s.cfg.DBSchema)
	nodesTable := fmt.Sprintf("%s.planet_osm_nodes", s.cfg.DBSchema)

	query := fmt.Sprintf("SELECT id, nodes, COALESCE(tags, '{}'::jsonb) FROM %s", waysTable)
	if highwayOnly {
		query += " WHERE tags ? 'highway'"
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ways: %w", err)
	}
	defer rows.Close()

	type rawWay struct {
		id    int64
		nodes []int64
		tags  map[string]string
	}

	var ways []rawWay
	needed := make(map[int64]bool)
	for rows.Next() {
		var w rawWay
		if err := rows.Scan(&w.id, &w.nodes, &w.tags); err != nil {
			return nil, fmt.Errorf("failed to scan way: %w", err)
		}
		if len(w.nodes) < 2 {
			continue
		}
		ways = append(ways, w)
		for _, id := range w.nodes {
			needed[id] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ways: %w", err)
	}

	coords, err := s.loadCoords(ctx, nodesTable, needed)
	if err != nil {
		return nil, err
	}

	ds := arena.NewDataset()
	kept := 0
	for _, w := range ways {
		complete := true
		for _, id := range w.nodes {
			if _, ok := coords[id]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, id := range w.nodes {
			ds.AddNode(&arena.Node{ID: id, Point: coords[id]})
		}
		if err := ds.AddWay(&arena.Way{ID: w.id, Nodes: w.nodes, Tags: w.tags}); err != nil {
			return nil, err
		}
		kept++
	}

	log.Info("Dataset loaded from middle tables",
		zap.Int("ways", kept),
		zap.Int("nodes", ds.NodeCount()))

	return ds, nil
}

// loadCoords fetches coordinates for the needed node ids in batches
func (s *MiddleSource) loadCoords(ctx context.Context, table string, needed map[int64]bool) (map[int64]orb.Point, error) {
	ids := make([]int64, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}

	coords := make(map[int64]orb.Point, len(ids))
	query := fmt.Sprintf("SELECT id, lat, lon FROM %s WHERE id = ANY($1)", table)

	for start := 0; start < len(ids); start += nodeBatchSize {
		end := start + nodeBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		rows, err := s.pool.Query(ctx, query, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to query nodes: %w", err)
		}
		for rows.Next() {
			var id int64
			var lat, lon int32
			if err := rows.Scan(&id, &lat, &lon); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan node: %w", err)
			}
			coords[id] = orb.Point{float64(lon) / 1e7, float64(lat) / 1e7}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to read nodes: %w", err)
		}
		rows.Close()
	}

	return coords, nil
}
