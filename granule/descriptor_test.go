package granule

import (
	"testing"

	"github.com/ctessum/ncagg/config"
)

// fakeHandle and fakeReader are an in-memory config.GranuleReader /
// config.GranuleHandle pair, modeled on the teacher's preference for
// small hand-written fakes over mocking frameworks (e.g. preproc_test.go's
// in-memory test fixtures).
type fakeHandle struct {
	schema config.Schema
	index  map[string][]float64
}

func (h *fakeHandle) Schema() (config.Schema, error) { return h.schema, nil }

func (h *fakeHandle) ReadIndex(variable string, otherDimIndices map[string]int) ([]float64, error) {
	v, ok := h.index[variable]
	if !ok {
		return nil, errNotFound(variable)
	}
	return v, nil
}

func (h *fakeHandle) ReadSlice(variable string, begin, end []int) (interface{}, error) {
	return nil, errNotFound(variable)
}

func (h *fakeHandle) Close() error { return nil }

type notFoundErr string

func (e notFoundErr) Error() string { return string(e) + ": not found" }

func errNotFound(v string) error { return notFoundErr(v) }

type fakeReader struct {
	handles map[string]*fakeHandle
}

func (r *fakeReader) Open(path string) (config.GranuleHandle, error) {
	h, ok := r.handles[path]
	if !ok {
		return nil, errNotFound(path)
	}
	return h, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Dimensions: []config.Dimension{
			{Name: "record_number", Unlimited: true, UDC: &config.UDC{
				IndexBy:         "time",
				ExpectedCadence: map[string]float64{"record_number": 1},
			}},
		},
		Variables: []config.Variable{
			{Name: "time", Dims: []string{"record_number"}, Datatype: config.DTDouble},
			{Name: "flux", Dims: []string{"record_number"}, Datatype: config.DTFloat},
			{Name: "not_present", Dims: []string{"record_number"}, Datatype: config.DTFloat},
		},
		GlobalAttrs: []config.GlobalAttrSpec{
			{Name: "site", Strategy: config.StrategyFirst},
		},
	}
}

func TestInspect(t *testing.T) {
	reader := &fakeReader{handles: map[string]*fakeHandle{
		"a.nc": {
			schema: config.Schema{
				Dims:        map[string]config.SchemaDim{"record_number": {Size: 3, Unlimited: true}},
				Variables:   map[string]bool{"time": true, "flux": true},
				GlobalAttrs: map[string]interface{}{"site": "alpha"},
			},
			index: map[string][]float64{"time": {10, 12, 11}},
		},
	}}

	d, err := Inspect(reader, "a.nc", testConfig())
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if d.DimSizes["record_number"] != 3 {
		t.Errorf("DimSizes[record_number] = %d, want 3", d.DimSizes["record_number"])
	}
	ext := d.UDims["record_number"]
	if ext.First != 10 || ext.Last != 11 {
		t.Errorf("First/Last = %v/%v, want 10/11", ext.First, ext.Last)
	}
	if len(ext.Projected) != 3 || ext.Projected[1] != 12 {
		t.Errorf("Projected = %v, want [10 12 11]", ext.Projected)
	}
	if !d.Missing["not_present"] {
		t.Errorf("expected not_present to be recorded missing")
	}
	if d.Missing["flux"] {
		t.Errorf("flux should not be missing")
	}
	if d.GlobalAttrs["site"] != "alpha" {
		t.Errorf("GlobalAttrs[site] = %v, want alpha", d.GlobalAttrs["site"])
	}
}

func TestInspectSchemaMismatch(t *testing.T) {
	reader := &fakeReader{handles: map[string]*fakeHandle{
		"bad.nc": {
			schema: config.Schema{
				Dims:      map[string]config.SchemaDim{"record_number": {Size: 3, Unlimited: false}},
				Variables: map[string]bool{"time": true, "flux": true},
			},
		},
	}}
	if _, err := Inspect(reader, "bad.nc", testConfig()); err == nil {
		t.Fatal("expected SchemaMismatchError for unlimited-ness disagreement, got nil")
	}
}

func TestSortByFirst(t *testing.T) {
	descs := []*Descriptor{
		{Path: "b.nc", UDims: map[string]UDimExtent{"record_number": {NumRecords: 2, First: 14}}},
		{Path: "a.nc", UDims: map[string]UDimExtent{"record_number": {NumRecords: 2, First: 10}}},
		{Path: "empty.nc", UDims: map[string]UDimExtent{"record_number": {NumRecords: 0}}},
	}
	SortByFirst(descs, "record_number")
	want := []string{"empty.nc", "a.nc", "b.nc"}
	for i, p := range want {
		if descs[i].Path != p {
			t.Errorf("descs[%d].Path = %q, want %q", i, descs[i].Path, p)
		}
	}
}
