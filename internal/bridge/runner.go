package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/arena"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/command"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/logger"
	"github.com/mapup/edit-osm-add-missing-bridge-for-truck-restriction/internal/proj"
)

// Stats holds batch processing statistics
type Stats struct {
	Processed int // candidates attempted
	Succeeded int // candidates that produced tag edits
	Failed    int // candidates skipped on error
	Commands  int // total edits in the log
}

// Runner processes candidates strictly one at a time: splits mutate the
// shared way/node id space that later candidates may reference, so there is
// no intra-batch parallelism.
type Runner struct {
	ds     *arena.Dataset
	log    *command.Log
	tagger *Tagger
}

// NewRunner creates a runner with a fresh command log over the dataset
func NewRunner(ds *arena.Dataset, tf *proj.Transformer) (*Runner, error) {
	if ds == nil || ds.WayCount() == 0 {
		return nil, arena.ErrNoDataset
	}
	log := command.NewLog(ds)
	return &Runner{
		ds:     ds,
		log:    log,
		tagger: NewTagger(ds, log, tf),
	}, nil
}

// Log returns the command log accumulated so far
func (r *Runner) Log() *command.Log {
	return r.log
}

// Tagger returns the underlying tagger, e.g. to adjust the search radius
func (r *Runner) Tagger() *Tagger {
	return r.tagger
}

// Run processes every candidate in order. Failures are candidate-scoped:
// they are logged, counted, and the batch proceeds. Only a missing dataset
// or a cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context, candidates []Candidate) (*Stats, error) {
	log := logger.Get()
	stats := &Stats{}

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		c := &candidates[i]
		stats.Processed++

		err := r.processOne(c)
		if err == nil {
			stats.Succeeded++
			continue
		}
		if errors.Is(err, arena.ErrNoDataset) {
			return stats, err
		}

		stats.Failed++
		log.Warn("Candidate skipped",
			zap.String("bridge", c.BridgeID),
			zap.Int("index", i),
			zap.Error(err))
	}

	stats.Commands = r.log.Len()
	log.Info("Batch complete",
		zap.Int("processed", stats.Processed),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("commands", stats.Commands))

	return stats, nil
}

// processOne isolates one candidate, converting panics from unexpected data
// shapes into candidate-scoped errors so the batch survives them
func (r *Runner) processOne(c *Candidate) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("bridge %s: unexpected failure: %v", c.BridgeID, p)
		}
	}()
	return r.tagger.Process(c)
}
