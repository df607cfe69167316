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
	"context"
	"reflect"
	"testing"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/granule"
)

// fakeWriter is a small in-memory stand-in for config.GranuleWriter,
// recording every call rather than touching disk.
type fakeWriter struct {
	writes  []fakeWrite
	attrs   map[string]interface{}
	attrSeq []string
}

type fakeWrite struct {
	variable   string
	begin, end []int
	data       interface{}
}

func newFakeWriter() *fakeWriter { return &fakeWriter{attrs: map[string]interface{}{}} }

func (w *fakeWriter) Create(path string, cfg *config.Config) error { return nil }
func (w *fakeWriter) Write(variable string, begin, end []int, data interface{}) error {
	w.writes = append(w.writes, fakeWrite{variable, append([]int(nil), begin...), append([]int(nil), end...), data})
	return nil
}
func (w *fakeWriter) SetGlobalAttr(name string, value interface{}) error {
	w.attrs[name] = value
	w.attrSeq = append(w.attrSeq, name)
	return nil
}
func (w *fakeWriter) FinalizeAndRename(finalPath string) error { return nil }
func (w *fakeWriter) Close() error                             { return nil }

func TestWriteUnlimitedWritesContiguousWindows(t *testing.T) {
	cfg := &config.Config{
		Dimensions: []config.Dimension{{Name: "t", Unlimited: true}},
		Variables:  []config.Variable{{Name: "v", Dims: []string{"t"}, Datatype: config.DTFloat}},
	}
	reader := &fakeReader{handles: map[string]*fakeHandle{
		"a.nc": {data: map[string]interface{}{"v": []float32{1, 2}}},
		"b.nc": {data: map[string]interface{}{"v": []float32{3, 4, 5}}},
	}}
	plan := &Plan{Nodes: map[string][]Node{"t": {
		&InputSlice{Path: "a.nc", Dim: "t", Nodes: []Node{&rawSlice{path: "a.nc", dim: "t", begin: 0, end: 2}}},
		&InputSlice{Path: "b.nc", Dim: "t", Nodes: []Node{&rawSlice{path: "b.nc", dim: "t", begin: 0, end: 3}}},
	}}}

	w := newFakeWriter()
	e := &Evaluator{Reader: reader, Writer: w}
	if err := e.writeUnlimited(context.Background(), cfg, &cfg.Variables[0], "t", plan); err != nil {
		t.Fatalf("writeUnlimited: %v", err)
	}
	if len(w.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(w.writes))
	}
	if !reflect.DeepEqual(w.writes[0].begin, []int{0}) || !reflect.DeepEqual(w.writes[0].end, []int{2}) {
		t.Errorf("first write window = %v..%v, want [0]..[2]", w.writes[0].begin, w.writes[0].end)
	}
	if !reflect.DeepEqual(w.writes[1].begin, []int{2}) || !reflect.DeepEqual(w.writes[1].end, []int{5}) {
		t.Errorf("second write window = %v..%v, want [2]..[5]", w.writes[1].begin, w.writes[1].end)
	}
}

func TestWriteUnlimitedHonorsCancellation(t *testing.T) {
	cfg := &config.Config{
		Dimensions: []config.Dimension{{Name: "t", Unlimited: true}},
		Variables:  []config.Variable{{Name: "v", Dims: []string{"t"}, Datatype: config.DTFloat}},
	}
	plan := &Plan{Nodes: map[string][]Node{"t": {
		&InputSlice{Path: "a.nc", Dim: "t", Nodes: []Node{&rawSlice{path: "a.nc", dim: "t", begin: 0, end: 2}}},
	}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &Evaluator{Writer: newFakeWriter()}
	err := e.writeUnlimited(ctx, cfg, &cfg.Variables[0], "t", plan)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
}

func TestCopyOneShotUsesFirstPresentGranule(t *testing.T) {
	v := config.Variable{Name: "static", Dims: []string{"x"}, Datatype: config.DTFloat}
	reader := &fakeReader{handles: map[string]*fakeHandle{
		"a.nc": {data: map[string]interface{}{"static": []float32{9, 9}}},
		"b.nc": {data: map[string]interface{}{"static": []float32{1, 1}}},
	}}
	descs := []*granule.Descriptor{
		{Path: "a.nc", DimSizes: map[string]int{"x": 2}, Missing: map[string]bool{"static": true}},
		{Path: "b.nc", DimSizes: map[string]int{"x": 2}, Missing: map[string]bool{}},
	}
	w := newFakeWriter()
	e := &Evaluator{Reader: reader, Writer: w}
	e.copyOneShot(&v, descs)
	if len(w.writes) != 1 {
		t.Fatalf("expected exactly 1 write, got %d", len(w.writes))
	}
	if w.writes[0].variable != "static" {
		t.Errorf("wrote variable %q", w.writes[0].variable)
	}
	if !reflect.DeepEqual(w.writes[0].data, []float32{1, 1}) {
		t.Errorf("data = %v, want the data from b.nc (the first granule where static isn't Missing)", w.writes[0].data)
	}
}

func TestCopyOneShotSkipsEntirelyWhenNoGranuleHasTheVariable(t *testing.T) {
	v := config.Variable{Name: "static", Dims: []string{"x"}, Datatype: config.DTFloat}
	descs := []*granule.Descriptor{
		{Path: "a.nc", DimSizes: map[string]int{"x": 2}, Missing: map[string]bool{"static": true}},
	}
	w := newFakeWriter()
	e := &Evaluator{Writer: w}
	e.copyOneShot(&v, descs)
	if len(w.writes) != 0 {
		t.Errorf("expected no writes, got %d", len(w.writes))
	}
}

func TestFinalizeAttrsUsesContributionOrder(t *testing.T) {
	cfg := &config.Config{
		Dimensions: []config.Dimension{{Name: "t", Unlimited: true}},
		GlobalAttrs: []config.GlobalAttrSpec{
			{Name: "source_files", Strategy: config.StrategyUniqueList},
			{Name: "n", Strategy: config.StrategyInputCount},
		},
	}
	plan := &Plan{Nodes: map[string][]Node{"t": {
		&InputSlice{Path: "b.nc", Dim: "t"},
		&InputSlice{Path: "a.nc", Dim: "t"},
	}}}
	descs := []*granule.Descriptor{
		{Path: "a.nc", GlobalAttrs: map[string]interface{}{"source_files": "a"}},
		{Path: "b.nc", GlobalAttrs: map[string]interface{}{"source_files": "b"}},
	}
	w := newFakeWriter()
	e := &Evaluator{Writer: w}
	if err := e.finalizeAttrs(cfg, plan, descs); err != nil {
		t.Fatalf("finalizeAttrs: %v", err)
	}
	if w.attrs["source_files"] != "b,a" {
		t.Errorf("source_files = %v, want b,a (plan order, not descriptor order)", w.attrs["source_files"])
	}
	if w.attrs["n"] != 2 {
		t.Errorf("n = %v, want 2", w.attrs["n"])
	}
}

func TestContributionOrderFallsBackToDescriptorOrderWithNoUnlimitedDim(t *testing.T) {
	cfg := &config.Config{}
	descs := []*granule.Descriptor{{Path: "z.nc"}, {Path: "a.nc"}}
	order := contributionOrder(cfg, &Plan{Nodes: map[string][]Node{}}, descs)
	if len(order) != 2 || order[0].Path != "z.nc" {
		t.Fatalf("expected the original descriptor order preserved, got %+v", order)
	}
}

func TestCtxErrReturnsCancelledError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctxErr(ctx); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if err := ctxErr(context.Background()); err != nil {
		t.Fatalf("expected no error for a live context, got %v", err)
	}
}
