package rmi

import "fmt"

// Dataset is a finite, non-decreasing sequence of (key, position) pairs
// where position is the 0-based index of the key's first occurrence
// ("lower bound" semantics for duplicates). Datasets are immutable after
// construction; use Rows to build one directly or ioformat.LoadKeyFile to
// read one from the little-endian key-file format (spec §6).
type Dataset struct {
	kind  KeyType
	ints  []uint64  // populated when kind != KeyTypeF64
	flts  []float64 // populated when kind == KeyTypeF64
	pos   []uint64
	asInt func(i int) uint64
}

// Rows builds a Dataset from pre-sorted (key, position) integer pairs; keys
// may repeat. The caller is responsible for lower-bound semantics: equal
// keys must carry the position of their first occurrence.
func Rows(kind KeyType, keys []uint64, positions []uint64) *Dataset {
	if len(keys) != len(positions) {
		panic(fmt.Sprintf("rmi: keys/positions length mismatch: %d vs %d", len(keys), len(positions)))
	}
	return &Dataset{kind: kind, ints: keys, pos: positions}
}

// FloatRows builds a Dataset over f64-domain keys.
func FloatRows(keys []float64, positions []uint64) *Dataset {
	if len(keys) != len(positions) {
		panic(fmt.Sprintf("rmi: keys/positions length mismatch: %d vs %d", len(keys), len(positions)))
	}
	return &Dataset{kind: KeyTypeF64, flts: keys, pos: positions}
}

// Empty returns a zero-length dataset of the given key domain, used to
// train dummy leaf models for leaves that received no routed data.
func Empty(kind KeyType) *Dataset {
	if kind == KeyTypeF64 {
		return &Dataset{kind: kind}
	}
	return &Dataset{kind: kind}
}

// Len returns the number of rows in the dataset.
func (d *Dataset) Len() int {
	if d.kind == KeyTypeF64 {
		return len(d.flts)
	}
	return len(d.ints)
}

// KeyType reports the domain this dataset's keys are drawn from.
func (d *Dataset) KeyType() KeyType { return d.kind }

// Key returns the ModelInput view of row i's key.
func (d *Dataset) Key(i int) ModelInput {
	if d.kind == KeyTypeF64 {
		return NewFloatInput(d.flts[i])
	}
	return NewIntInput(d.kind, d.ints[i])
}

// Position returns row i's position.
func (d *Dataset) Position(i int) uint64 { return d.pos[i] }

// Get returns row i's (key, position) pair.
func (d *Dataset) Get(i int) (ModelInput, uint64) {
	return d.Key(i), d.Position(i)
}

// Row is a materialized (key, position) pair, used by iteration helpers
// and leaf-partitioning to avoid repeated interface dispatch.
type Row struct {
	Key ModelInput
	Pos uint64
}

// Iter returns every row in index order.
func (d *Dataset) Iter() []Row {
	n := d.Len()
	out := make([]Row, n)
	for i := 0; i < n; i++ {
		out[i] = Row{Key: d.Key(i), Pos: d.pos[i]}
	}
	return out
}

// IterUnique returns one row per distinct key, carrying the position of
// that key's first (lowest) occurrence. Requires the dataset to already be
// sorted non-decreasing by key, which all constructors guarantee.
func (d *Dataset) IterUnique() []Row {
	n := d.Len()
	if n == 0 {
		return nil
	}
	out := make([]Row, 0, n)
	first := d.Key(0)
	out = append(out, Row{Key: first, Pos: d.pos[0]})
	for i := 1; i < n; i++ {
		k := d.Key(i)
		if k.AsInt() == out[len(out)-1].Key.AsInt() && d.kind != KeyTypeF64 {
			continue
		}
		if d.kind == KeyTypeF64 && k.AsFloat() == out[len(out)-1].Key.AsFloat() {
			continue
		}
		out = append(out, Row{Key: k, Pos: d.pos[i]})
	}
	return out
}

// IterBounded returns rows in [lo, hi).
func (d *Dataset) IterBounded(lo, hi int) []Row {
	out := make([]Row, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, Row{Key: d.Key(i), Pos: d.pos[i]})
	}
	return out
}

// Wrapper wraps an immutable Dataset and carries a mutable y-scale applied
// lazily during iteration (component C, §4.C). Each worker constructs its
// own Wrapper over a shared Dataset so parallel training never contends on
// the scale field.
type Wrapper struct {
	data  *Dataset
	scale float64
}

// NewWrapper returns a Wrapper with scale 1.0 (no rescaling).
func NewWrapper(data *Dataset) *Wrapper {
	return &Wrapper{data: data, scale: 1.0}
}

// Len returns the number of rows in the underlying dataset.
func (w *Wrapper) Len() int { return w.data.Len() }

// Dataset returns the underlying immutable dataset.
func (w *Wrapper) Dataset() *Dataset { return w.data }

// KeyType reports the domain this wrapper's keys are drawn from.
func (w *Wrapper) KeyType() KeyType { return w.data.KeyType() }

// SetScale changes the y-scale applied to positions returned by Get. A
// scale of 1.0 means unscaled.
func (w *Wrapper) SetScale(s float64) { w.scale = s }

// Scale returns the currently active y-scale.
func (w *Wrapper) Scale() float64 { return w.scale }

// GetKey returns row i's key without scaling.
func (w *Wrapper) GetKey(i int) ModelInput { return w.data.Key(i) }

// Get returns row i's (key, scaled position) pair.
func (w *Wrapper) Get(i int) (ModelInput, float64) {
	return w.data.Key(i), float64(w.data.Position(i)) * w.scale
}

// ScaledRow is a materialized (key, scaled y) pair.
type ScaledRow struct {
	Key ModelInput
	Y   float64
}

// Iter returns every row, y-scaled, in index order.
func (w *Wrapper) Iter() []ScaledRow {
	n := w.Len()
	out := make([]ScaledRow, n)
	for i := 0; i < n; i++ {
		k, y := w.Get(i)
		out[i] = ScaledRow{Key: k, Y: y}
	}
	return out
}

// IterUnique returns one y-scaled row per distinct key (lowest position).
func (w *Wrapper) IterUnique() []ScaledRow {
	rows := w.data.IterUnique()
	out := make([]ScaledRow, len(rows))
	for i, r := range rows {
		out[i] = ScaledRow{Key: r.Key, Y: float64(r.Pos) * w.scale}
	}
	return out
}

// IterBounded returns y-scaled rows in [lo, hi).
func (w *Wrapper) IterBounded(lo, hi int) []ScaledRow {
	out := make([]ScaledRow, 0, hi-lo)
	for i := lo; i < hi; i++ {
		k, y := w.Get(i)
		out = append(out, ScaledRow{Key: k, Y: y})
	}
	return out
}
