/*
Copyright © 2024 the ncagg authors.
This file is part of ncagg.

ncagg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ncagg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ncagg.  If not, see <http://www.gnu.org/licenses/>.
*/

package ncagg

import (
	"fmt"
	"math"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
)

// Node is one contiguous contribution along one unlimited dimension (spec
// section 4.3). A plan is an ordered list of Nodes; the evaluator walks
// them in order, advancing a write cursor by SizeAlong(dim) per node.
type Node interface {
	// SizeAlong reports this node's fixed record count along dim. Every
	// Node implementation only ever answers for the one dim it was built
	// for; callers must not query a different dimension.
	SizeAlong(dim string) int

	// DataFor returns v's data over this node's span, shaped like v's
	// declared dimensions with dim replaced by SizeAlong(dim). The
	// dynamic type of the returned value matches v.Datatype the way
	// github.com/ctessum/cdf's Reader does: []uint8, []int16, []int32,
	// []float32, []float64, or []byte for DTChar.
	DataFor(reader config.GranuleReader, cfg *config.Config, v *config.Variable, dim string) (interface{}, error)
}

// rawSlice is a leaf Node: a contiguous, already-ordered range
// [begin, end) of one granule's records along dim. It never holds the
// granule's file handle outside of a DataFor call (spec section 5).
type rawSlice struct {
	path       string
	dim        string
	begin, end int
}

func (r *rawSlice) SizeAlong(dim string) int {
	if dim != r.dim {
		return 0
	}
	return r.end - r.begin
}

func (r *rawSlice) DataFor(reader config.GranuleReader, cfg *config.Config, v *config.Variable, dim string) (interface{}, error) {
	h, err := reader.Open(r.path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: r.path, Err: err}
	}
	defer h.Close()

	begin := make([]int, len(v.Dims))
	end := make([]int, len(v.Dims))
	dims := cfg.DimMap()
	for i, dn := range v.Dims {
		if dn == dim {
			begin[i], end[i] = r.begin, r.end
			continue
		}
		d := dims[dn]
		begin[i] = 0
		end[i] = d.Size
	}

	data, err := h.ReadSlice(v.Name, begin, end)
	if err != nil {
		return nil, &errs.IOError{Op: "read_slice", Path: r.path, Err: err}
	}
	substituteNaN(data, v.FillValue())
	return data, nil
}

// substituteNaN rewrites any NaN float32/float64 in data to fillValue in
// place (spec section 4.3: "Must not return NaN where a _FillValue exists;
// NaN-to-fill substitution is the node's responsibility"). data's dynamic
// type is whatever github.com/ctessum/cdf's Reader returns; for every other
// type this is a no-op, since NaN only arises in IEEE float data. If
// fillValue is nil, NaN values are left as-is: there is no configured
// _FillValue to substitute.
func substituteNaN(data interface{}, fillValue interface{}) {
	if fillValue == nil {
		return
	}
	switch s := data.(type) {
	case []float32:
		fv, ok := toFloat64(fillValue)
		if !ok {
			return
		}
		for i, x := range s {
			if math.IsNaN(float64(x)) {
				s[i] = float32(fv)
			}
		}
	case []float64:
		fv, ok := toFloat64(fillValue)
		if !ok {
			return
		}
		for i, x := range s {
			if math.IsNaN(x) {
				s[i] = fv
			}
		}
	}
}

// FillSegment synthesizes Count records of fill data along dim. When dim's
// index_by variable is requested, it emits a lattice of synthesized values
// starting at Start and stepping by Step (spec section 4.4 steps 5-6). If
// the index_by variable has a second, inner dimension with its own
// configured cadence (InnerDim/InnerStep), each outer fill record also
// steps by InnerStep per successive inner position, so a multidimensional
// index_by (e.g. OB_time(report_number, samples_per_record)) receives a
// full, monotonically increasing inner sequence per synthesized outer
// record (seed scenario S6) instead of a constant value repeated across
// the inner dimension. Every other variable receives its _FillValue.
type FillSegment struct {
	Dim        string
	Count      int
	Start      float64
	Step       float64
	IndexByVar string

	// InnerDim and InnerStep describe the inner-dimension cadence of a
	// multidimensional IndexByVar (spec section 4.4 step 5's "For multidim
	// index_by, each inner dim with cadence generates a full inner
	// lattice per outer fill record"). Left zero-valued for a
	// single-dimension index_by, in which case indexByLattice broadcasts
	// Start/Step across the inner dimension unchanged.
	InnerDim  string
	InnerStep float64
}

func (f *FillSegment) SizeAlong(dim string) int {
	if dim != f.Dim {
		return 0
	}
	return f.Count
}

func (f *FillSegment) DataFor(reader config.GranuleReader, cfg *config.Config, v *config.Variable, dim string) (interface{}, error) {
	shape := make([]int, len(v.Dims))
	dims := cfg.DimMap()
	for i, dn := range v.Dims {
		if dn == dim {
			shape[i] = f.Count
			continue
		}
		shape[i] = dims[dn].Size
	}

	if v.Name == f.IndexByVar && f.Step > 0 {
		return f.indexByLattice(shape, v, dim)
	}
	return fillTyped(v.Datatype, shape, v.FillValue())
}

// indexByLattice builds the synthesized index_by values for a FillSegment:
// the outer dimension (dim) steps by f.Step starting at f.Start. When
// f.InnerDim names v's other dimension, each inner position additionally
// steps by f.InnerStep, so the overall sequence is monotonically
// increasing in row-major (outer-to-inner) order — matching how a real
// granule's multidim index_by variable is laid out on disk (spec section
// 4.4 step 5). With no InnerDim configured, the same outer value is
// broadcast across the inner dimension, matching a single-dimension
// index_by.
func (f *FillSegment) indexByLattice(shape []int, v *config.Variable, dim string) (interface{}, error) {
	total := 1
	for _, s := range shape {
		total *= s
	}
	innerSize := 1
	hasInnerCadence := false
	for i, dn := range v.Dims {
		if dn == dim {
			continue
		}
		if dn == f.InnerDim {
			hasInnerCadence = true
		}
		innerSize *= shape[i]
	}
	out := make([]float64, total)
	for outer := 0; outer < f.Count; outer++ {
		base := f.Start + float64(outer)*f.Step
		for inner := 0; inner < innerSize; inner++ {
			val := base
			if hasInnerCadence {
				val += float64(inner) * f.InnerStep
			}
			out[outer*innerSize+inner] = val
		}
	}
	return out, nil
}

// fillTyped returns a slice of the Go type that matches dtype, of the
// given shape's total length, filled with fillValue (or the type's zero
// value if fillValue is nil).
func fillTyped(dtype config.DType, shape []int, fillValue interface{}) (interface{}, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	switch dtype {
	case config.DTByte, config.DTChar:
		var fv byte
		if b, ok := toInt64(fillValue); ok {
			fv = byte(b)
		}
		out := make([]byte, n)
		for i := range out {
			out[i] = fv
		}
		return out, nil
	case config.DTShort:
		var fv int16
		if b, ok := toInt64(fillValue); ok {
			fv = int16(b)
		}
		out := make([]int16, n)
		for i := range out {
			out[i] = fv
		}
		return out, nil
	case config.DTInt:
		var fv int32
		if b, ok := toInt64(fillValue); ok {
			fv = int32(b)
		}
		out := make([]int32, n)
		for i := range out {
			out[i] = fv
		}
		return out, nil
	case config.DTFloat:
		var fv float32
		if b, ok := toFloat64(fillValue); ok {
			fv = float32(b)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = fv
		}
		return out, nil
	case config.DTDouble:
		var fv float64
		if b, ok := toFloat64(fillValue); ok {
			fv = b
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = fv
		}
		return out, nil
	}
	return nil, fmt.Errorf("ncagg: unsupported datatype %v", dtype)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// InputSlice is a reference to one granule's contribution along dim. It
// holds its own ordered mini-plan of rawSlice and FillSegment sub-nodes
// (spec section 4.4 "Mini-plan inside InputSlice") realizing a sorted,
// deduplicated, cadence-filled view of the granule's own records, without
// ever touching the underlying file except inside a DataFor call.
type InputSlice struct {
	Path  string
	Dim   string
	Nodes []Node // the granule's own mini-plan, in order, along Dim
}

func (s *InputSlice) SizeAlong(dim string) int {
	if dim != s.Dim {
		return 0
	}
	total := 0
	for _, n := range s.Nodes {
		total += n.SizeAlong(dim)
	}
	return total
}

func (s *InputSlice) DataFor(reader config.GranuleReader, cfg *config.Config, v *config.Variable, dim string) (interface{}, error) {
	parts := make([]interface{}, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.SizeAlong(dim) == 0 {
			continue
		}
		d, err := n.DataFor(reader, cfg, v, dim)
		if err != nil {
			return nil, err
		}
		parts = append(parts, d)
	}
	return concatTyped(v.Datatype, parts)
}

// concatTyped concatenates same-typed data slices in order, matching the
// dynamic representation fillTyped and rawSlice.DataFor use.
func concatTyped(dtype config.DType, parts []interface{}) (interface{}, error) {
	switch dtype {
	case config.DTByte, config.DTChar:
		var out []byte
		for _, p := range parts {
			out = append(out, p.([]byte)...)
		}
		return out, nil
	case config.DTShort:
		var out []int16
		for _, p := range parts {
			out = append(out, p.([]int16)...)
		}
		return out, nil
	case config.DTInt:
		var out []int32
		for _, p := range parts {
			out = append(out, p.([]int32)...)
		}
		return out, nil
	case config.DTFloat:
		var out []float32
		for _, p := range parts {
			out = append(out, p.([]float32)...)
		}
		return out, nil
	case config.DTDouble:
		var out []float64
		for _, p := range parts {
			out = append(out, p.([]float64)...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("ncagg: unsupported datatype %v", dtype)
}
