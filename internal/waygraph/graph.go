// Package waygraph answers connectivity questions over road ways. Two ways
// are connected when they share an identical node id at either endpoint,
// which is how consecutive fragments of one road join in the source data.
package waygraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
)

// ErrNoPath means the two ways are not connected through shared endpoints
var ErrNoPath = errors.New("no path between ways")

// Graph is a connectivity graph with ways as vertices
type Graph struct {
	adjacency map[int64][]int64
}

// Build constructs the graph over every live way in the dataset
func Build(ds *arena.Dataset) *Graph {
	return BuildOver(ds.Ways())
}

// BuildOver constructs the graph over an explicit candidate set of ways
func BuildOver(ways []*arena.Way) *Graph {
	byEndpoint := make(map[int64][]int64)
	for _, w := range ways {
		byEndpoint[w.FirstNode()] = append(byEndpoint[w.FirstNode()], w.ID)
		if w.LastNode() != w.FirstNode() {
			byEndpoint[w.LastNode()] = append(byEndpoint[w.LastNode()], w.ID)
		}
	}

	adjacency := make(map[int64][]int64, len(ways))
	for _, w := range ways {
		seen := map[int64]bool{w.ID: true}
		var neighbors []int64
		for _, endpoint := range []int64{w.FirstNode(), w.LastNode()} {
			for _, other := range byEndpoint[endpoint] {
				if !seen[other] {
					seen[other] = true
					neighbors = append(neighbors, other)
				}
			}
		}
		// Ascending neighbor order keeps BFS traversal, and therefore
		// tie-breaking between equally short paths, deterministic.
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		adjacency[w.ID] = neighbors
	}

	return &Graph{adjacency: adjacency}
}

// Neighbors returns the ways sharing an endpoint with the given way
func (g *Graph) Neighbors(wayID int64) []int64 {
	return g.adjacency[wayID]
}

// ShortestPath returns the fewest-hop chain of way ids from one way to
// another, endpoints included. ShortestPath(a, a) is [a].
func (g *Graph) ShortestPath(from, to int64) ([]int64, error) {
	if _, ok := g.adjacency[from]; !ok {
		return nil, fmt.Errorf("way %d not in graph: %w", from, ErrNoPath)
	}
	if _, ok := g.adjacency[to]; !ok {
		return nil, fmt.Errorf("way %d not in graph: %w", to, ErrNoPath)
	}
	if from == to {
		return []int64{from}, nil
	}

	parent := map[int64]int64{from: from}
	frontier := []int64{from}

	for len(frontier) > 0 {
		var next []int64
		for _, id := range frontier {
			for _, neighbor := range g.adjacency[id] {
				if _, visited := parent[neighbor]; visited {
					continue
				}
				parent[neighbor] = id
				if neighbor == to {
					return unwind(parent, from, to), nil
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	return nil, fmt.Errorf("ways %d and %d: %w", from, to, ErrNoPath)
}

// Between returns the ways strictly between two ways on their shortest
// path, i.e. the chain with both endpoints trimmed.
func (g *Graph) Between(from, to int64) ([]int64, error) {
	path, err := g.ShortestPath(from, to)
	if err != nil {
		return nil, err
	}
	if len(path) <= 2 {
		return nil, nil
	}
	return path[1 : len(path)-1], nil
}

func unwind(parent map[int64]int64, from, to int64) []int64 {
	var path []int64
	for id := to; id != from; id = parent[id] {
		path = append(path, id)
	}
	path = append(path, from)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
