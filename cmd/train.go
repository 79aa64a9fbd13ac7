package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rmi-trainer/rmi/rmi"
	"github.com/rmi-trainer/rmi/rmi/cachefix"
	"github.com/rmi-trainer/rmi/rmi/codegen"
	"github.com/rmi-trainer/rmi/rmi/ioformat"
	"github.com/rmi-trainer/rmi/rmi/train"
)

var (
	trainNoCode             bool
	trainLastLayerErrors    bool
	trainStatsFile          string
	trainParamGridPath      string
	trainDataPath           string
	trainNoErrors           bool
	trainThreads            int
	trainDisableParallel    bool
	trainOptimizeOut        string
	trainDumpLLErrorsPath   string
	trainKeyTypeOverride    string
	trainCacheFixLineSize   uint64
)

var trainCmd = &cobra.Command{
	Use:   "train <input> [<namespace> <models> <branch_factor>]",
	Short: "Train one RMI (or a --param-grid sweep) and emit lookup code",
	Args:  cobra.RangeArgs(1, 4),
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.BoolVar(&trainNoCode, "no-code", false, "Train and report statistics without emitting lookup code")
	f.BoolVarP(&trainLastLayerErrors, "last-layer-errors", "e", false, "Zip the per-leaf max error into the last layer's parameters")
	f.StringVarP(&trainStatsFile, "stats-file", "s", "", "Write a JSON error-statistics report to this path")
	f.StringVar(&trainParamGridPath, "param-grid", "", "Train every configuration in this JSON param-grid file instead of a single namespace")
	f.StringVarP(&trainDataPath, "data-path", "d", "rmi_data", "Directory for on-disk parameter blobs")
	f.BoolVar(&trainNoErrors, "no-errors", false, "Do not record last-layer max errors at all")
	f.IntVarP(&trainThreads, "threads", "t", train.DefaultWorkers, "Worker pool size")
	f.BoolVar(&trainDisableParallel, "disable-parallel-training", false, "Force single-threaded training")
	f.StringVar(&trainOptimizeOut, "optimize", "", "Run a Pareto grid search instead of training a single config, writing the frontier to this JSON path")
	f.StringVar(&trainDumpLLErrorsPath, "dump-ll-errors", "", "Dump the raw per-leaf max-error vector to this path")
	f.StringVar(&trainKeyTypeOverride, "key-type", "", "Override key-type detection (uint32, uint64, f64)")
	f.Uint64Var(&trainCacheFixLineSize, "cache-fix-line-size", 0, "Compress the dataset to a cache-fix spline bounded by this cache-line size before training (0 disables)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	if trainParamGridPath != "" && len(args) > 1 {
		return fmt.Errorf("validation: namespace/models/branch_factor and --param-grid are mutually exclusive")
	}

	inputPath := args[0]
	keyType, err := resolveKeyType(inputPath, trainKeyTypeOverride)
	if err != nil {
		return err
	}

	dataset, err := ioformat.LoadKeyFile(inputPath, keyType)
	if err != nil {
		return err
	}
	if dataset.Len() == 0 {
		return fmt.Errorf("validation: input %q contains no keys", inputPath)
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
	ctx := context.Background()

	if trainOptimizeOut != "" {
		return runOptimizeGrid(ctx, dataset, workers, cacheFixInfo)
	}
	if trainParamGridPath != "" {
		return runParamGrid(ctx, dataset, workers, cacheFixInfo)
	}

	if len(args) != 4 {
		return fmt.Errorf("validation: <namespace> <models> <branch_factor> are required unless --param-grid or --optimize is set")
	}
	namespace, modelsArg, branchArg := args[1], args[2], args[3]
	types := strings.Split(modelsArg, ",")
	if len(types) != 2 {
		return fmt.Errorf("validation: <models> must be \"top,leaf\", got %q", modelsArg)
	}
	branchingFactor, err := ioformat.ParseBranchingFactor(branchArg)
	if err != nil {
		return err
	}

	trained, err := train.TrainTwoLayer(ctx, rmi.NewWrapper(dataset), types[0], types[1], branchingFactor)
	if err != nil {
		return fmt.Errorf("training run aborted: %w", err)
	}
	trained.CacheFix = cacheFixInfo

	return finishOneTrain(namespace, trained, keyType)
}

func finishOneTrain(namespace string, trained *rmi.TrainedRMI, keyType rmi.KeyType) error {
	includeErrors := !trainNoErrors

	if trainStatsFile != "" {
		if err := ioformat.WriteStatsReport(trainStatsFile, ioformat.BuildStatsReport(trained, includeErrors)); err != nil {
			return err
		}
	}
	if trainDumpLLErrorsPath != "" {
		if err := ioformat.DumpLeafErrors(trainDumpLLErrorsPath, trained.LastLayerMaxL1s); err != nil {
			return err
		}
	}
	if !trainNoCode {
		if err := codegen.EmitToDisk(".", trainDataPath, namespace, trained, 0, keyType, includeErrors && trainLastLayerErrors); err != nil {
			return fmt.Errorf("code emission failed: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"namespace": namespace, "rows": trained.NumDataRows, "rmi_size": trained.SizeBytes(includeErrors),
		"avg_log2_error": trained.Stats.AvgLog2Error,
	}).Info("training complete")
	return nil
}

func resolveKeyType(path, override string) (rmi.KeyType, error) {
	switch override {
	case "uint32":
		return rmi.KeyTypeU32, nil
	case "uint64":
		return rmi.KeyTypeU64, nil
	case "f64":
		return rmi.KeyTypeF64, nil
	case "":
		return ioformat.DetectKeyType(path)
	default:
		return 0, fmt.Errorf("validation: unknown --key-type %q", override)
	}
}
