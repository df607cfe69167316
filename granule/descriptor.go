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

// Package granule implements the one-shot granule inspection pass (spec
// section 4.2): for each input path, a single read that records dimension
// sizes, the projected index_by range, the full projected index_by values
// (needed by the planner's sort/dedup/fill arithmetic), and configured
// global attribute values, without reading any bulk variable data.
package granule

import (
	"sort"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
)

// UDimExtent is what one granule's descriptor records about a single
// unlimited dimension: its size, the first and last projected index_by
// value (if the dimension has an index_by), and, when the planner needs it
// for sort/dedup/fill arithmetic, the full projected sequence.
type UDimExtent struct {
	NumRecords int

	// First and Last are the projected index_by values at record 0 and
	// record NumRecords-1 as read from the granule (not yet sorted); they
	// are only meaningful when the dimension has an index_by variable.
	First, Last float64

	// Projected holds every projected index_by value for this dimension,
	// in on-disk order. The planner reads this only for granules that
	// need internal sorting, dedup, or fill arithmetic; descriptor
	// construction always reads it up front since it has to touch the
	// index_by variable anyway to derive First/Last.
	Projected []float64
}

// Descriptor is the one-shot inspection result for a single granule.
type Descriptor struct {
	Path string

	// DimSizes holds every non-unlimited dimension's observed size, and
	// every unlimited dimension's record count, keyed by dimension name.
	DimSizes map[string]int

	// UDims holds the per-unlimited-dimension extent, keyed by dimension
	// name, for every unlimited dimension configured in the product.
	UDims map[string]UDimExtent

	// Missing is the set of configured variable names absent from this
	// granule's schema. The evaluator substitutes _FillValue for these.
	Missing map[string]bool

	// GlobalAttrs holds the raw value of every configured global
	// attribute name that this granule's schema reports, keyed by name.
	GlobalAttrs map[string]interface{}
}

// Inspect opens path via reader, validates its schema against cfg, and
// builds a Descriptor in a single pass. It does not read any bulk variable
// data; for unlimited dimensions with an index_by it reads only the
// projected 1-D index sequence.
func Inspect(reader config.GranuleReader, path string, cfg *config.Config) (*Descriptor, error) {
	h, err := reader.Open(path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: path, Err: err}
	}
	defer h.Close()

	schema, err := h.Schema()
	if err != nil {
		return nil, &errs.IOError{Op: "schema", Path: path, Err: err}
	}

	d := &Descriptor{
		Path:        path,
		DimSizes:    map[string]int{},
		UDims:       map[string]UDimExtent{},
		Missing:     map[string]bool{},
		GlobalAttrs: map[string]interface{}{},
	}

	for _, dim := range cfg.Dimensions {
		sd, ok := schema.Dims[dim.Name]
		if !ok {
			return nil, &errs.SchemaMismatchError{Granule: path, Reason: "missing dimension " + dim.Name}
		}
		if dim.Unlimited != sd.Unlimited {
			return nil, &errs.SchemaMismatchError{Granule: path, Reason: "dimension " + dim.Name + " unlimited-ness disagrees with config"}
		}
		if !dim.Unlimited && sd.Size != dim.Size {
			return nil, &errs.SchemaMismatchError{Granule: path, Reason: "dimension " + dim.Name + " size disagrees with config"}
		}
		d.DimSizes[dim.Name] = sd.Size

		if !dim.Unlimited {
			continue
		}

		ext := UDimExtent{NumRecords: sd.Size}
		if dim.UDC != nil && dim.UDC.IndexBy != "" {
			proj, err := h.ReadIndex(dim.UDC.IndexBy, dim.UDC.OtherDimIndices)
			if err != nil {
				return nil, &errs.IndexVarNonNumericError{Granule: path, Var: dim.UDC.IndexBy}
			}
			ext.Projected = proj
			if len(proj) > 0 {
				ext.First = proj[0]
				ext.Last = proj[len(proj)-1]
			}
		}
		d.UDims[dim.Name] = ext
	}

	for _, v := range cfg.Variables {
		if !schema.Variables[v.Name] {
			d.Missing[v.Name] = true
		}
	}

	for _, a := range cfg.GlobalAttrs {
		if val, ok := schema.GlobalAttrs[a.Name]; ok {
			d.GlobalAttrs[a.Name] = val
		}
	}

	return d, nil
}

// InspectAll inspects every path and returns their descriptors in the same
// order as paths. It does not sort them; the planner orders granules itself
// (see SortByFirst for a coarse pre-filter ordering).
func InspectAll(reader config.GranuleReader, paths []string, cfg *config.Config) ([]*Descriptor, error) {
	descs := make([]*Descriptor, 0, len(paths))
	for _, p := range paths {
		d, err := Inspect(reader, p, cfg)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// SortByFirst sorts descs in place by the First projected value of dimName,
// breaking ties by Path. Granules with zero records along dimName sort by
// Path alone, ahead of any with records (they contribute nothing and order
// doesn't matter for them).
func SortByFirst(descs []*Descriptor, dimName string) {
	sort.SliceStable(descs, func(i, j int) bool {
		ei, oki := descs[i].UDims[dimName]
		ej, okj := descs[j].UDims[dimName]
		if !oki || ei.NumRecords == 0 {
			if !okj || ej.NumRecords == 0 {
				return descs[i].Path < descs[j].Path
			}
			return true
		}
		if !okj || ej.NumRecords == 0 {
			return false
		}
		if ei.First != ej.First {
			return ei.First < ej.First
		}
		return descs[i].Path < descs[j].Path
	})
}
