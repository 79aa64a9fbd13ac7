package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// OptimizerDefaults is the decoded shape of configs/defaults.yaml: the
// optimizer's model-type catalog and branching-factor ladder (spec §4.H).
// All top-level sections are listed to satisfy KnownFields(true) strict
// parsing, matching cmd/default_config.go's loadDefaultsConfig idiom.
type OptimizerDefaults struct {
	Version            string   `yaml:"version"`
	TopLayerModels      []string `yaml:"top_layer_models"`
	LeafLayerModels     []string `yaml:"leaf_layer_models"`
	BranchingFactorMin  uint64   `yaml:"branching_factor_min"`
	BranchingFactorMax  uint64   `yaml:"branching_factor_max"`
	TopK                int      `yaml:"top_k"`
}

// loadOptimizerDefaults parses path with strict field checking: a typo'd
// key is a load-time error, not a silently-ignored field.
func loadOptimizerDefaults(path string) (*OptimizerDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read optimizer defaults %q: %w", path, err)
	}

	var cfg OptimizerDefaults
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse optimizer defaults YAML %q: %w", path, err)
	}
	if len(cfg.TopLayerModels) == 0 || len(cfg.LeafLayerModels) == 0 {
		return nil, fmt.Errorf("optimizer defaults %q: empty model catalog", path)
	}
	if cfg.BranchingFactorMin == 0 || cfg.BranchingFactorMax < cfg.BranchingFactorMin {
		return nil, fmt.Errorf("optimizer defaults %q: invalid branching factor range [%d, %d]",
			path, cfg.BranchingFactorMin, cfg.BranchingFactorMax)
	}
	return &cfg, nil
}
