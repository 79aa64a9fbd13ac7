package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/cachefix"
	"github.com/rmi-trainer/rmi/rmi/codegen"
	"github.com/rmi-trainer/rmi/rmi/ioformat"
	"github.com/rmi-trainer/rmi/rmi/optimize"
	"github.com/rmi-trainer/rmi/rmi/train"
)

var (
	optimizeDefaultsPath string
	optimizeTopK         int
	optimizeEmitCode     bool
)

// optimizeCmd is a discoverable alias for "train --optimize <out.json>"
// (spec.md §6 models --optimize as one flag of a single command;
// SPEC_FULL.md's MODULE LAYOUT additionally exposes it as its own
// subcommand for clarity).
var optimizeCmd = &cobra.Command{
	Use:   "optimize <input> <out.json>",
	Short: "Pareto grid search over model-type x branching-factor configurations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath, outPath := args[0], args[1]
		keyType, err := resolveKeyType(inputPath, trainKeyTypeOverride)
		if err != nil {
			return err
		}
		dataset, err := ioformat.LoadKeyFile(inputPath, keyType)
		if err != nil {
			return err
		}

		var cacheFixInfo *rmi.CacheFixInfo
		if trainCacheFixLineSize > 0 {
			joints, err := cachefix.Fix(dataset, trainCacheFixLineSize)
			if err != nil {
				return fmt.Errorf("cache-fix: %w", err)
			}
			dataset = cachefix.ReindexedDataset(joints, keyType)
			cacheFixInfo = &rmi.CacheFixInfo{LineSize: int(trainCacheFixLineSize), Spline: joints}
		}

		workers := trainThreads
		if trainDisableParallel {
			workers = 1
		}
		trainOptimizeOut = outPath
		return runOptimizeGrid(context.Background(), dataset, workers, cacheFixInfo)
	},
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVar(&optimizeDefaultsPath, "defaults", "configs/defaults.yaml", "Optimizer model-type catalog and branching-factor ladder")
	f.IntVar(&optimizeTopK, "top-k", 0, "Cap the number of frontier configurations reported (0 = use defaults.yaml's top_k)")
	f.StringVarP(&trainDataPath, "data-path", "d", "rmi_data", "Directory for on-disk parameter blobs")
	f.IntVarP(&trainThreads, "threads", "t", train.DefaultWorkers, "Worker pool size")
	f.BoolVar(&trainDisableParallel, "disable-parallel-training", false, "Force single-threaded training")
	f.StringVar(&trainKeyTypeOverride, "key-type", "", "Override key-type detection (uint32, uint64, f64)")
	f.BoolVar(&optimizeEmitCode, "emit-code", false, "Also emit lookup code for every frontier configuration")
	f.Uint64Var(&trainCacheFixLineSize, "cache-fix-line-size", 0, "Compress the dataset to a cache-fix spline bounded by this cache-line size before training (0 disables)")
}

// runOptimizeGrid builds the Cartesian grid from configs/defaults.yaml,
// trains every configuration, filters to the Pareto frontier, and writes
// it as a JSON grid spec to trainOptimizeOut. cacheFixInfo, when non-nil,
// is stamped onto every frontier result's TrainedRMI so emitted/serialized
// results disclose the spline they were trained on top of.
func runOptimizeGrid(ctx context.Context, dataset *rmi.Dataset, workers int, cacheFixInfo *rmi.CacheFixInfo) error {
	path := optimizeDefaultsPath
	if path == "" {
		path = "configs/defaults.yaml"
	}
	defaults, err := loadOptimizerDefaults(path)
	if err != nil {
		return err
	}

	grid := optimize.Grid(defaults.TopLayerModels, defaults.LeafLayerModels,
		optimize.PowersOfTwo(defaults.BranchingFactorMin, defaults.BranchingFactorMax))

	logrus.WithField("configs", len(grid)).Info("optimizer grid search starting")

	results, err := optimize.Run(ctx, rmi.NewWrapper(dataset), grid, workers, !trainNoErrors)
	if err != nil {
		return fmt.Errorf("optimizer run aborted: %w", err)
	}

	k := optimizeTopK
	if k == 0 {
		k = defaults.TopK
	}
	top := optimize.TopK(results, k)

	report := ioformat.FrontierReport{Configs: make([]ioformat.FrontierEntry, len(top))}
	for i, r := range top {
		r.RMI.CacheFix = cacheFixInfo
		report.Configs[i] = ioformat.FrontierEntry{
			Layers:          ioformat.FormatLayers([]string{r.Config.TopModel, r.Config.LeafModel}),
			BranchingFactor: r.Config.BranchingFactor,
			Namespace:       r.Config.Namespace(),
			SizeBytes:       r.SizeBytes,
			AvgLog2Error:    r.AvgLog2Err,
		}
		if optimizeEmitCode {
			keyType := dataset.KeyType()
			if err := codegen.EmitToDisk(filepath.Join(".", r.Config.Namespace()), trainDataPath, r.Config.Namespace(), r.RMI, 0, keyType, !trainNoErrors); err != nil {
				return fmt.Errorf("emit frontier config %s: %w", r.Config.Namespace(), err)
			}
		}
	}

	if err := ioformat.WriteFrontierReport(trainOptimizeOut, report); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"frontier_size": len(top), "out": trainOptimizeOut}).Info("optimizer grid search complete")
	return nil
}

// runParamGrid trains every configuration named in a --param-grid JSON
// document (spec §6's Param-grid JSON shape), emitting code for each
// under its own (or suggested) namespace. A single failing configuration
// aborts the whole run (§7).
func runParamGrid(ctx context.Context, dataset *rmi.Dataset, workers int, cacheFixInfo *rmi.CacheFixInfo) error {
	data, err := os.ReadFile(trainParamGridPath)
	if err != nil {
		return fmt.Errorf("ioformat: read param grid %q: %w", trainParamGridPath, err)
	}
	grid, err := ioformat.LoadParamGrid(data)
	if err != nil {
		return err
	}

	keyType := dataset.KeyType()
	for i, cfg := range grid.Configs {
		types := cfg.ModelTypes()
		namespace := cfg.Namespace
		if namespace == nil {
			name := fmt.Sprintf("config_%d", i)
			namespace = &name
		}

		var trained *rmi.TrainedRMI
		if len(types) == 2 {
			trained, err = train.TrainTwoLayer(ctx, rmi.NewWrapper(dataset), types[0], types[1], cfg.BranchingFactor)
		} else {
			trained, err = train.TrainMultiLayer(ctx, rmi.NewWrapper(dataset), types, cfg.BranchingFactor)
		}
		if err != nil {
			return fmt.Errorf("param-grid config %d (%s) aborted the run: %w", i, *namespace, err)
		}
		trained.CacheFix = cacheFixInfo

		if err := finishOneTrain(*namespace, trained, keyType); err != nil {
			return err
		}
	}
	return nil
}
