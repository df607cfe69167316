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

// Package netcdfio implements the config.GranuleReader and
// config.GranuleWriter contracts (spec section 6.1, 6.2) on top of
// github.com/ctessum/cdf, grounded on the teacher's sr/sr.go
// cdf.NewHeader/AddVariable/AddAttribute/Define/Create sequence and
// emissions/aep/coards_record.go's _FillValue handling.
package netcdfio

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/ncagg/config"
)

// Reader implements config.GranuleReader by opening each granule with
// github.com/ctessum/cdf on demand. Handles are not shared across Open
// calls by Reader itself; wrap a Reader in a HandleCache (handlecache.go)
// to reuse handles across the many ReadIndex/ReadSlice calls a single
// granule receives during planning and evaluation.
type Reader struct{}

// NewReader returns a Reader with no handle caching. Most callers want
// NewHandleCache(NewReader(), size) instead.
func NewReader() *Reader { return &Reader{} }

func (r *Reader) Open(path string) (config.GranuleHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("netcdfio: opening %s: %v", path, err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("netcdfio: reading header of %s: %v", path, err)
	}
	return &handle{f: f, nc: nc}, nil
}

type handle struct {
	f  *os.File
	nc *cdf.File
}

func (h *handle) Schema() (config.Schema, error) {
	names := h.nc.Header.Dimensions("")
	lengths := h.nc.Header.Lengths("")
	dims := make(map[string]config.SchemaDim, len(names))
	for i, n := range names {
		size, unlimited := lengths[i], lengths[i] == 0 && h.isRecordDim(n)
		if unlimited {
			// The raw length is 0 for the record dimension; take the record
			// count from a record variable's own Lengths instead.
			for _, v := range h.nc.Header.Variables() {
				if dn := h.nc.Header.Dimensions(v); len(dn) > 0 && dn[0] == n && h.nc.Header.IsRecordVariable(v) {
					size = h.nc.Header.Lengths(v)[0]
					break
				}
			}
		}
		dims[n] = config.SchemaDim{Size: size, Unlimited: unlimited}
	}

	vars := map[string]bool{}
	for _, v := range h.nc.Header.Variables() {
		vars[v] = true
	}

	globals := map[string]interface{}{}
	for _, a := range h.nc.Header.Attributes("") {
		globals[a] = attrScalar(h.nc.Header.GetAttribute("", a))
	}

	return config.Schema{Dims: dims, Variables: vars, GlobalAttrs: globals}, nil
}

// isRecordDim reports whether n is the file's record (unlimited)
// dimension: cdf represents this by giving it length 0 in the raw
// dimension list even once records have been written, since per-variable
// Lengths reports the current record count instead.
func (h *handle) isRecordDim(n string) bool {
	for _, v := range h.nc.Header.Variables() {
		dimNames := h.nc.Header.Dimensions(v)
		if len(dimNames) > 0 && dimNames[0] == n && h.nc.Header.IsRecordVariable(v) {
			return true
		}
	}
	return false
}

func (h *handle) ReadIndex(variable string, otherDimIndices map[string]int) ([]float64, error) {
	dimNames := h.nc.Header.Dimensions(variable)
	if len(dimNames) == 0 {
		return nil, fmt.Errorf("netcdfio: variable %s not found", variable)
	}
	lengths := h.fullLengths(variable, dimNames)

	begin := make([]int, len(dimNames))
	end := make([]int, len(dimNames))
	for i, dn := range dimNames {
		if i == 0 {
			begin[i], end[i] = 0, lengths[0]
			continue
		}
		idx := otherDimIndices[dn]
		begin[i], end[i] = idx, idx+1
	}

	raw, err := h.readRaw(variable, begin, end)
	if err != nil {
		return nil, err
	}
	out, ok := toFloat64Slice(raw)
	if !ok {
		return nil, fmt.Errorf("netcdfio: variable %s is not numeric", variable)
	}
	return out, nil
}

func (h *handle) ReadSlice(variable string, begin, end []int) (interface{}, error) {
	return h.readRaw(variable, begin, end)
}

func (h *handle) readRaw(variable string, begin, end []int) (interface{}, error) {
	r := h.nc.Reader(variable, begin, end)
	if r == nil {
		return nil, fmt.Errorf("netcdfio: variable %s not found", variable)
	}
	n := 1
	for i := range begin {
		n *= end[i] - begin[i]
	}
	data := r.Zero(n)
	if _, err := r.Read(data); err != nil {
		return nil, fmt.Errorf("netcdfio: reading %s: %v", variable, err)
	}
	return normalize(data), nil
}

// fullLengths returns the current length of every dimension of variable,
// substituting the record dimension's actual record count (reported via
// the variable's own Lengths, since the raw Header dimension length stays
//0 for the record dimension).
func (h *handle) fullLengths(variable string, dimNames []string) []int {
	return h.nc.Header.Lengths(variable)
}

// normalize converts cdf's BYTE/CHAR representation ([]uint8 or string)
// to the []byte convention used throughout ncagg and config.GranuleHandle.
func normalize(data interface{}) interface{} {
	switch d := data.(type) {
	case []uint8:
		return []byte(d)
	case string:
		return []byte(d)
	default:
		return data
	}
}

func toFloat64Slice(data interface{}) ([]float64, bool) {
	switch d := data.(type) {
	case []float64:
		return d, true
	case []float32:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = float64(v)
		}
		return out, true
	case []int32:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = float64(v)
		}
		return out, true
	case []int16:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = float64(v)
		}
		return out, true
	case []byte:
		out := make([]float64, len(d))
		for i, v := range d {
			out[i] = float64(v)
		}
		return out, true
	}
	return nil, false
}

func (h *handle) Close() error {
	return h.f.Close()
}

// attrScalar unwraps a single-element attribute value to a plain scalar
// (string, int64, or float64), matching how attribute strategies (ncagg
// package attr.go) compare and sum observed values. Multi-element
// attributes are returned as-is.
func attrScalar(v interface{}) interface{} {
	switch d := v.(type) {
	case string:
		return d
	case []uint8:
		if len(d) == 1 {
			return int64(d[0])
		}
	case []int16:
		if len(d) == 1 {
			return int64(d[0])
		}
	case []int32:
		if len(d) == 1 {
			return int64(d[0])
		}
	case []float32:
		if len(d) == 1 {
			return float64(d[0])
		}
	case []float64:
		if len(d) == 1 {
			return d[0]
		}
	}
	return v
}
