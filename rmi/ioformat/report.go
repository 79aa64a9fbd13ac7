package ioformat

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rmi-trainer/rmi/rmi"
)

// StatsReport is the --stats-file JSON document: the trained RMI's
// aggregate error statistics alongside the config that produced it,
// matching the teacher's HFConfig/golden-dataset JSON handling style.
type StatsReport struct {
	Layers          string  `json:"layers"`
	BranchingFactor uint64  `json:"branching factor"`
	NumDataRows     int     `json:"num_rows"`
	RMISize         int     `json:"rmi_size"`
	AvgError        float64 `json:"average_error"`
	AvgL2Error      float64 `json:"average_l2_error"`
	AvgLog2Error    float64 `json:"average_log2_error"`
	MaxError        uint64  `json:"max_error"`
	MaxLog2Error    float64 `json:"max_log2_error"`
}

// BuildStatsReport derives a StatsReport from a trained RMI.
func BuildStatsReport(t *rmi.TrainedRMI, exportErrors bool) StatsReport {
	return StatsReport{
		Layers:          FormatLayers(t.ModelNames),
		BranchingFactor: t.BranchingFactor,
		NumDataRows:     t.NumDataRows,
		RMISize:         t.SizeBytes(exportErrors),
		AvgError:        t.Stats.AvgError,
		AvgL2Error:      t.Stats.AvgL2Error,
		AvgLog2Error:    t.Stats.AvgLog2Error,
		MaxError:        t.Stats.MaxError,
		MaxLog2Error:    t.Stats.MaxLog2Error,
	}
}

// WriteStatsReport writes a StatsReport to path as indented JSON.
func WriteStatsReport(path string, r StatsReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("ioformat: marshal stats report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ioformat: write stats report %q: %w", path, err)
	}
	return nil
}

// WriteFrontierReport writes an optimizer FrontierReport to path as
// indented JSON.
func WriteFrontierReport(path string, r FrontierReport) error {
	data, err := MarshalFrontierReport(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ioformat: write frontier report %q: %w", path, err)
	}
	return nil
}

// DumpLeafErrors writes the trained RMI's raw per-leaf max-L1-error vector
// to path as a little-endian u64 array, for offline analysis — the
// --dump-ll-errors flag supplemented from the reference implementation's
// main.rs (see SPEC_FULL.md's SUPPLEMENTED FEATURES).
func DumpLeafErrors(path string, errs []uint64) error {
	buf := make([]byte, 8*len(errs))
	for i, e := range errs {
		binary.LittleEndian.PutUint64(buf[i*8:], e)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("ioformat: write leaf-error dump %q: %w", path, err)
	}
	return nil
}
