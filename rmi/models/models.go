// Package models is the RMI model zoo (spec §4.B): a set of regression
// primitives that each turn a dataset view into a Model implementation.
// Every constructor has the shape New(*rmi.Wrapper) *T so the trainer can
// hand any model type the same scaled, lazily-iterated data view regardless
// of whether it is training a top model (rescaled) or a leaf model
// (scale 1.0) — see rmi/dataset.go's Wrapper and spec §4.C.
package models

import "github.com/rmi-trainer/rmi/rmi"

// yToInt rounds a (possibly scaled) training position down to the integer
// view models like RadixModel and EquidepthHistogramModel train against,
// matching the §3 cross-consistency rule (predict_int == floor(max(0, y))).
func yToInt(y float64) uint64 { return rmi.FloorClamp(y) }
