package cmd

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/logger"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/waygraph"
)

var routeCmd = &cobra.Command{
	Use:   "route <input.osm[.pbf]> <from-way-id> <to-way-id>",
	Short: "Find the chain of ways connecting two ways",
	Long: `Find the fewest-hop chain of ways between two way ids, where ways are
connected when they share an endpoint node. The intermediate ids are what a
multi-way bridge candidate lists as its ways-in-between.`,
	Args: cobra.ExactArgs(3),
	Run:  runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().BoolVar(&cfg.HighwayOnly, "highway-only", cfg.HighwayOnly, "Keep only highway-tagged ways")
}

func runRoute(cmd *cobra.Command, args []string) {
	log := logger.Get()

	from, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		exitWithError("Invalid from-way-id", err)
	}
	to, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		exitWithError("Invalid to-way-id", err)
	}

	opts := arena.DefaultLoadOptions()
	opts.HighwayOnly = cfg.HighwayOnly
	opts.Workers = cfg.Workers

	ds, err := arena.Load(context.Background(), args[0], opts)
	if err != nil {
		exitWithError("Failed to load dataset", err)
	}

	graph := waygraph.Build(ds)

	path, err := graph.ShortestPath(from, to)
	if err != nil {
		exitWithError("No route", err)
	}
	var between []int64
	if len(path) > 2 {
		between = path[1 : len(path)-1]
	}

	log.Info("Route found",
		zap.Int64("from", from),
		zap.Int64("to", to),
		zap.Int("hops", len(path)))

	fmt.Printf("path: %v\n", path)
	fmt.Printf("ways in between: %v\n", between)
}
