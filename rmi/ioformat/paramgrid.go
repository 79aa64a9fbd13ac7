package ioformat

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParamGridConfig is one entry of the --param-grid JSON document (spec
// §6): "layers" packs the per-layer model-type list as a comma-separated
// string ("linear,linear"), matching the CLI's own positional <models>
// argument shape so both paths parse through the same splitter.
type ParamGridConfig struct {
	Layers          string `json:"layers"`
	BranchingFactor uint64 `json:"branching factor"`
	Namespace       *string `json:"namespace,omitempty"`
	Binary          *bool  `json:"binary,omitempty"`
}

// ParamGrid is the top-level --param-grid document shape.
type ParamGrid struct {
	Configs []ParamGridConfig `json:"configs"`
}

// ModelTypes splits a ParamGridConfig's comma-separated Layers string into
// the ordered list of per-layer model type names.
func (c ParamGridConfig) ModelTypes() []string {
	parts := strings.Split(c.Layers, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// LoadParamGrid parses a --param-grid JSON document from raw bytes.
func LoadParamGrid(data []byte) (*ParamGrid, error) {
	var g ParamGrid
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("ioformat: parse param grid: %w", err)
	}
	if len(g.Configs) == 0 {
		return nil, fmt.Errorf("ioformat: param grid has no configs")
	}
	for i, c := range g.Configs {
		if c.BranchingFactor == 0 {
			return nil, fmt.Errorf("ioformat: param grid config %d has a zero branching factor", i)
		}
		if len(c.ModelTypes()) == 0 {
			return nil, fmt.Errorf("ioformat: param grid config %d has no layers", i)
		}
	}
	return &g, nil
}

// FrontierEntry is one row of the optimizer's emitted JSON grid spec (spec
// §4.H: "Emits a JSON-like grid spec describing the top-k frontier
// configurations with suggested namespaces").
type FrontierEntry struct {
	Layers          string  `json:"layers"`
	BranchingFactor uint64  `json:"branching factor"`
	Namespace       string  `json:"namespace"`
	SizeBytes       int     `json:"size_bytes"`
	AvgLog2Error    float64 `json:"avg_log2_error"`
}

// FrontierReport is the top-level document WriteFrontierReport emits.
type FrontierReport struct {
	Configs []FrontierEntry `json:"configs"`
}

// FormatLayers joins a per-layer model-type list back into the
// comma-separated form ParamGridConfig.Layers/ModelTypes use.
func FormatLayers(modelTypes []string) string { return strings.Join(modelTypes, ",") }

// MarshalFrontierReport serializes a frontier report to indented JSON.
func MarshalFrontierReport(r FrontierReport) ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ioformat: marshal frontier report: %w", err)
	}
	return out, nil
}

// ParseBranchingFactor parses a CLI positional branch_factor argument,
// rejecting non-numeric or zero values.
func ParseBranchingFactor(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ioformat: invalid branch_factor %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("ioformat: branch_factor must be positive, got 0")
	}
	return v, nil
}
