// Package optimize implements the Pareto grid search optimizer (spec
// §4.H): enumerate a fixed catalog of (top model, leaf model, branching
// factor) configurations, train each as a two-layer RMI, and keep only
// the configurations on the (size_bytes, avg_log2_error) Pareto frontier.
// Grounded on original_source/src/train.rs's grid/optimizer driver.
package optimize

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/train"
)

// Config is one point in the grid: a (top model, leaf model, branching
// factor) triple to train and score.
type Config struct {
	TopModel      string
	LeafModel     string
	BranchingFactor uint64
}

// Namespace derives the suggested emitted-code namespace for this config,
// e.g. "linear_linear_256".
func (c Config) Namespace() string {
	return fmt.Sprintf("%s_%s_%d", c.TopModel, c.LeafModel, c.BranchingFactor)
}

// Result pairs a grid Config with its trained RMI's frontier coordinates.
type Result struct {
	Config     Config
	SizeBytes  int
	AvgLog2Err float64
	RMI        *rmi.TrainedRMI
}

// Grid builds the Cartesian product of topModels x leafModels x
// branchingFactors.
func Grid(topModels, leafModels []string, branchingFactors []uint64) []Config {
	var out []Config
	for _, t := range topModels {
		for _, l := range leafModels {
			for _, b := range branchingFactors {
				out = append(out, Config{TopModel: t, LeafModel: l, BranchingFactor: b})
			}
		}
	}
	return out
}

// PowersOfTwo returns the powers of two in [lo, hi] inclusive, the
// branching-factor ladder spec.md §4.H calls for ("a fixed set of
// branching factors (powers of two from a lower bound up to an upper
// bound tuned by dataset size)").
func PowersOfTwo(lo, hi uint64) []uint64 {
	var out []uint64
	for b := lo; b <= hi; b *= 2 {
		out = append(out, b)
		if b == 0 {
			break
		}
	}
	return out
}

// Run trains every configuration in grid against w, in parallel across
// workers, then filters to the Pareto frontier on (SizeBytes,
// AvgLog2Err): lower is better on both axes, and a result survives only
// if no other result is both smaller-or-equal in size and strictly
// better (or equal) in error, with at least one strict improvement.
// Grounded on spec §5(i): "each configuration's training runs on any
// worker... results collected into a deterministic output order", and
// §7's "an optimizer grid entry that fails validation must fail the
// whole optimizer run" (errgroup's first-error cancellation).
func Run(ctx context.Context, w *rmi.Wrapper, grid []Config, workers int, exportErrors bool) ([]Result, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("optimize: empty configuration grid")
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(grid))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)

	for i, cfg := range grid {
		i, cfg := i, cfg
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			logrus.WithFields(logrus.Fields{
				"top": cfg.TopModel, "leaf": cfg.LeafModel, "branch": cfg.BranchingFactor,
			}).Debug("optimizer training configuration")

			trained, err := train.TrainTwoLayer(gctx, rmi.NewWrapper(w.Dataset()), cfg.TopModel, cfg.LeafModel, cfg.BranchingFactor)
			if err != nil {
				return fmt.Errorf("optimize: config %s: %w", cfg.Namespace(), err)
			}

			results[i] = Result{
				Config:     cfg,
				SizeBytes:  trained.SizeBytes(exportErrors),
				AvgLog2Err: trained.Stats.AvgLog2Error,
				RMI:        trained,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return paretoFrontier(results), nil
}

// paretoFrontier keeps only results for which no other result is both
// no-larger and no-less-accurate, with at least one strict improvement —
// the standard "not dominated" filter, sorted by size for a deterministic
// output order.
func paretoFrontier(results []Result) []Result {
	var frontier []Result
	for i, r := range results {
		dominated := false
		for j, other := range results {
			if i == j {
				continue
			}
			if dominates(other, r) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, r)
		}
	}

	sort.Slice(frontier, func(i, j int) bool {
		if frontier[i].SizeBytes != frontier[j].SizeBytes {
			return frontier[i].SizeBytes < frontier[j].SizeBytes
		}
		return frontier[i].AvgLog2Err < frontier[j].AvgLog2Err
	})
	return frontier
}

// dominates reports whether a is at least as good as b on both axes and
// strictly better on at least one — a Pareto-dominates-b test.
func dominates(a, b Result) bool {
	notWorse := a.SizeBytes <= b.SizeBytes && a.AvgLog2Err <= b.AvgLog2Err
	strictlyBetter := a.SizeBytes < b.SizeBytes || a.AvgLog2Err < b.AvgLog2Err
	return notWorse && strictlyBetter
}

// TopK returns the top-k entries of a frontier already sorted by size
// (smallest first), capping at len(frontier) if k exceeds it.
func TopK(frontier []Result, k int) []Result {
	if k >= len(frontier) {
		return frontier
	}
	return frontier[:k]
}
