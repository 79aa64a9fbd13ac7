package rmi

// SplineJoint is one (key, position) joint of a cache-fix spline (§3, §4.D).
type SplineJoint struct {
	Key ModelInput
	Pos uint64
}

// CacheFixInfo records the cache-fix descriptor an RMI was trained on top
// of. It is carried on TrainedRMI only: rmi/codegen and the JSON reports do
// not include it.
type CacheFixInfo struct {
	LineSize int
	Spline   []SplineJoint
}

// ErrorStats holds the aggregate error statistics derived from a trained
// RMI's per-leaf max-error vector (§3, §4.F step 6).
type ErrorStats struct {
	AvgError     float64
	AvgL2Error   float64
	AvgLog2Error float64
	MaxError     uint64
	MaxErrorIdx  int
	MaxLog2Error float64
}

// TrainedRMI is the result of training: an ordered list of layers (each a
// list of Models), the per-leaf max-error vector, aggregate statistics, and
// an optional cache-fix descriptor.
type TrainedRMI struct {
	Layers          [][]Model
	LastLayerMaxL1s []uint64
	Stats           ErrorStats
	BranchingFactor uint64
	ModelNames      []string // one per layer, e.g. {"linear", "linear"}
	NumDataRows     int
	CacheFix        *CacheFixInfo
	KeyType         KeyType
}

// TopModel returns the single layer-0 model.
func (t *TrainedRMI) TopModel() Model { return t.Layers[0][0] }

// LeafModels returns the final layer's models.
func (t *TrainedRMI) LeafModels() []Model { return t.Layers[len(t.Layers)-1] }

// SizeBytes computes the number of bytes of packed parameters across every
// layer, optionally adding 8 bytes per leaf for an exported error array
// (§4.I RMI_SIZE). This is the same computation rmi/codegen uses to emit
// the RMI_SIZE constant, kept here so rmi/optimize can score configurations
// without invoking the emitter.
func (t *TrainedRMI) SizeBytes(exportErrors bool) int {
	total := 0
	for _, layer := range t.Layers {
		for _, m := range layer {
			for _, p := range m.Params() {
				total += p.Size()
			}
		}
	}
	if exportErrors {
		total += 8 * len(t.LastLayerMaxL1s)
	}
	return total
}
