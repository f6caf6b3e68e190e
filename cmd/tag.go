package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/bridge"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/config"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/logger"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/metrics"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/osc"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/proj"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/store"
)

var (
	bboxStr       string
	projectionStr string
	fromDB        bool
)

var tagCmd = &cobra.Command{
	Use:   "tag <input.osm[.pbf]>",
	Short: "Run the bridge tagging batch over a road network",
	Long: `Run the full tagging batch:

  1. Load the road network from an OSM file (or middle tables with --from-db)
  2. Load bridge candidates (association CSV or YAML)
  3. For each candidate: resolve endpoints, split ways, tag the bridge span
  4. Write the accumulated edits as an OsmChange file

Candidates are processed strictly in order; a failing candidate is logged
and skipped without disturbing the rest of the batch.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)

	tagCmd.Flags().StringVarP(&cfg.CandidatesFile, "candidates", "c", "", "Bridge candidate file (CSV or YAML, required)")
	tagCmd.Flags().StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "OsmChange output path (.osc or .osc.gz)")
	tagCmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Bounding box filter: minlon,minlat,maxlon,maxlat")
	tagCmd.Flags().StringVarP(&projectionStr, "projection", "E", "3857", "Planar SRID for segment projection (4326 or 3857)")
	tagCmd.Flags().Float64Var(&cfg.SearchRadius, "search-radius", cfg.SearchRadius, "Coordinate-to-way search radius in meters")
	tagCmd.Flags().BoolVar(&cfg.HighwayOnly, "highway-only", cfg.HighwayOnly, "Keep only highway-tagged ways")
	tagCmd.Flags().BoolVar(&fromDB, "from-db", false, "Load the network from PostgreSQL middle tables instead of a file")
	tagCmd.MarkFlagRequired("candidates")
}

func runTag(cmd *cobra.Command, args []string) {
	log := logger.Get()
	start := time.Now()

	if len(args) == 1 {
		cfg.InputFile = args[0]
	} else if !fromDB {
		exitWithError("input file required unless --from-db is set", nil)
	}

	srid, err := proj.ParseSRID(projectionStr)
	if err != nil {
		exitWithError("Invalid projection", err)
	}
	cfg.Projection = srid

	bbox, err := config.ParseBBox(bboxStr)
	if err != nil {
		exitWithError("Invalid bounding box", err)
	}
	cfg.BBox = bbox

	if fromDB {
		err = cfg.ValidateProcessing()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		exitWithError("Invalid configuration", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics run for the lifetime of the batch
	collector := metrics.NewCollector(cfg.MetricsInterval, log)
	go collector.Start(ctx)

	ds, err := loadDataset(ctx)
	if err != nil {
		exitWithError("Failed to load dataset", err)
	}

	candidates, err := bridge.LoadCandidates(cfg.CandidatesFile)
	if err != nil {
		exitWithError("Failed to load candidates", err)
	}
	log.Info("Candidates loaded",
		zap.Int("count", len(candidates)),
		zap.String("file", cfg.CandidatesFile))

	tf, err := proj.NewTransformer(proj.SRID4326, cfg.Projection)
	if err != nil {
		exitWithError("Failed to create transformer", err)
	}

	runner, err := bridge.NewRunner(ds, tf)
	if err != nil {
		exitWithError("Cannot start batch", err)
	}
	runner.Tagger().SearchRadius = cfg.SearchRadius

	stats, err := runner.Run(ctx, candidates)
	if err != nil {
		exitWithError("Batch aborted", err)
	}

	if err := osc.Write(cfg.OutputFile, ds, runner.Log()); err != nil {
		exitWithError("Failed to write change file", err)
	}

	log.Info("Tagging run complete",
		zap.Int("candidates", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("commands", stats.Commands),
		zap.String("output", cfg.OutputFile),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))

	logger.Sync()
}

// loadDataset picks the configured dataset source
func loadDataset(ctx context.Context) (*arena.Dataset, error) {
	if fromDB {
		src, err := store.NewMiddleSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.LoadDataset(ctx, cfg.HighwayOnly)
	}

	opts := arena.DefaultLoadOptions()
	opts.HighwayOnly = cfg.HighwayOnly
	opts.BBox = cfg.BBox
	opts.Workers = cfg.Workers
	if cfg.WorkDir != "" {
		opts.WorkDir = cfg.WorkDir
	}
	return arena.Load(ctx, cfg.InputFile, opts)
}
