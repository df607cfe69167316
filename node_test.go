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
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
)

// fakeHandle/fakeReader are small in-memory stand-ins for config.GranuleHandle
// /GranuleReader, grounded on the same hand-written-fake convention used by
// granule/descriptor_test.go.
type fakeHandle struct {
	data   map[string]interface{}
	schema config.Schema
}

func (h *fakeHandle) Schema() (config.Schema, error) { return h.schema, nil }
func (h *fakeHandle) ReadIndex(variable string, otherDimIndices map[string]int) ([]float64, error) {
	return nil, nil
}
func (h *fakeHandle) ReadSlice(variable string, begin, end []int) (interface{}, error) {
	return h.data[variable], nil
}
func (h *fakeHandle) Close() error { return nil }

type fakeReader struct {
	handles map[string]*fakeHandle
}

func (r *fakeReader) Open(path string) (config.GranuleHandle, error) {
	h, ok := r.handles[path]
	if !ok {
		return nil, &errs.IOError{Op: "open", Path: path, Err: errNotFound}
	}
	return h, nil
}

var errNotFound = errorString("granule not found")

type errorString string

func (e errorString) Error() string { return string(e) }

func testDimMap() (*config.Config, map[string]config.Dimension) {
	cfg := &config.Config{Dimensions: []config.Dimension{
		{Name: "t", Unlimited: true},
		{Name: "x", Size: 4},
	}}
	return cfg, cfg.DimMap()
}

func TestRawSliceSizeAlong(t *testing.T) {
	r := &rawSlice{path: "a.nc", dim: "t", begin: 2, end: 5}
	if got := r.SizeAlong("t"); got != 3 {
		t.Errorf("SizeAlong(t) = %d, want 3", got)
	}
	if got := r.SizeAlong("x"); got != 0 {
		t.Errorf("SizeAlong(x) = %d, want 0", got)
	}
}

func TestRawSliceDataFor(t *testing.T) {
	cfg, _ := testDimMap()
	reader := &fakeReader{handles: map[string]*fakeHandle{
		"a.nc": {data: map[string]interface{}{"v": []float32{1, 2, 3, 4, 5, 6, 7, 8}}},
	}}
	v := &config.Variable{Name: "v", Dims: []string{"t", "x"}, Datatype: config.DTFloat}
	r := &rawSlice{path: "a.nc", dim: "t", begin: 0, end: 2}
	data, err := r.DataFor(reader, cfg, v, "t")
	if err != nil {
		t.Fatalf("DataFor: %v", err)
	}
	if !reflect.DeepEqual(data, []float32{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("DataFor = %v", data)
	}
}

func TestFillSegmentFillsConfiguredValue(t *testing.T) {
	cfg, _ := testDimMap()
	v := &config.Variable{Name: "v", Dims: []string{"t", "x"}, Datatype: config.DTFloat,
		Attributes: map[string]interface{}{"_FillValue": float64(-999)}}
	f := &FillSegment{Dim: "t", Count: 2}
	if got := f.SizeAlong("t"); got != 2 {
		t.Errorf("SizeAlong = %d, want 2", got)
	}
	data, err := f.DataFor(nil, cfg, v, "t")
	if err != nil {
		t.Fatalf("DataFor: %v", err)
	}
	want := []float32{-999, -999, -999, -999, -999, -999, -999, -999}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("DataFor = %v, want %v", data, want)
	}
}

func TestFillSegmentIndexByLattice(t *testing.T) {
	cfg := &config.Config{Dimensions: []config.Dimension{{Name: "t", Unlimited: true}}}
	v := &config.Variable{Name: "time", Dims: []string{"t"}, Datatype: config.DTDouble}
	f := &FillSegment{Dim: "t", Count: 3, Start: 10, Step: 1, IndexByVar: "time"}
	data, err := f.DataFor(nil, cfg, v, "t")
	if err != nil {
		t.Fatalf("DataFor: %v", err)
	}
	want := []float64{10, 11, 12}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("DataFor = %v, want %v", data, want)
	}
}

// TestFillSegmentIndexByLatticeMultidim exercises a multidimensional
// index_by variable (e.g. OB_time(report_number, samples_per_record)): each
// synthesized outer (report_number) record must carry a full, monotonically
// increasing inner (samples_per_record) sequence, not the same value
// repeated across the inner dimension.
func TestFillSegmentIndexByLatticeMultidim(t *testing.T) {
	cfg := &config.Config{Dimensions: []config.Dimension{
		{Name: "report_number", Unlimited: true},
		{Name: "samples_per_record", Size: 4},
	}}
	v := &config.Variable{
		Name: "OB_time", Dims: []string{"report_number", "samples_per_record"}, Datatype: config.DTDouble,
	}
	f := &FillSegment{
		Dim: "report_number", Count: 2, Start: 100, Step: 10, IndexByVar: "OB_time",
		InnerDim: "samples_per_record", InnerStep: 1,
	}
	data, err := f.DataFor(nil, cfg, v, "report_number")
	if err != nil {
		t.Fatalf("DataFor: %v", err)
	}
	want := []float64{100, 101, 102, 103, 110, 111, 112, 113}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("DataFor = %v, want %v", data, want)
	}
}

// TestRawSliceDataForSubstitutesNaN confirms the node layer, not the
// external reader, is responsible for rewriting a NaN read from a granule
// into the variable's configured _FillValue before it reaches the
// evaluator.
func TestRawSliceDataForSubstitutesNaN(t *testing.T) {
	cfg, _ := testDimMap()
	reader := &fakeReader{handles: map[string]*fakeHandle{
		"a.nc": {data: map[string]interface{}{
			"v": []float32{1, float32(math.NaN()), 3, 4, 5, 6, 7, 8},
		}},
	}}
	v := &config.Variable{Name: "v", Dims: []string{"t", "x"}, Datatype: config.DTFloat,
		Attributes: map[string]interface{}{"_FillValue": float64(-999)}}
	r := &rawSlice{path: "a.nc", dim: "t", begin: 0, end: 2}
	data, err := r.DataFor(reader, cfg, v, "t")
	if err != nil {
		t.Fatalf("DataFor: %v", err)
	}
	want := []float32{1, -999, 3, 4, 5, 6, 7, 8}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("DataFor = %v, want %v", data, want)
	}
}

func TestInputSliceSizeAlongSumsNodes(t *testing.T) {
	s := &InputSlice{Dim: "t", Nodes: []Node{
		&rawSlice{dim: "t", begin: 0, end: 3},
		&FillSegment{Dim: "t", Count: 2},
	}}
	if got := s.SizeAlong("t"); got != 5 {
		t.Errorf("SizeAlong = %d, want 5", got)
	}
}

func TestInputSliceDataForConcatenates(t *testing.T) {
	cfg, _ := testDimMap()
	reader := &fakeReader{handles: map[string]*fakeHandle{
		"a.nc": {data: map[string]interface{}{"v": []float32{1, 2, 3, 4}}},
	}}
	v := &config.Variable{Name: "v", Dims: []string{"t", "x"}, Datatype: config.DTFloat}
	s := &InputSlice{Path: "a.nc", Dim: "t", Nodes: []Node{
		&rawSlice{path: "a.nc", dim: "t", begin: 0, end: 1},
		&FillSegment{Dim: "t", Count: 1},
	}}
	data, err := s.DataFor(reader, cfg, v, "t")
	if err != nil {
		t.Fatalf("DataFor: %v", err)
	}
	want := []float32{1, 2, 3, 4, 0, 0, 0, 0}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("DataFor = %v, want %v", data, want)
	}
}
