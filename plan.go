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
	"sort"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
	"github.com/ctessum/ncagg/granule"
)

// Plan is the planner's output: per unlimited dimension, an ordered list
// of Nodes whose SizeAlong sums equal that dimension's output size (spec
// section 4.4, invariant 1).
type Plan struct {
	Nodes map[string][]Node
}

// SizeAlong returns the total output size of dim across the plan's nodes.
func (p *Plan) SizeAlong(dim string) int {
	total := 0
	for _, n := range p.Nodes[dim] {
		total += n.SizeAlong(dim)
	}
	return total
}

// BuildPlan runs the planner (component D) over descs for every unlimited
// dimension in cfg, independently, per spec section 4.4.
func BuildPlan(cfg *config.Config, descs []*granule.Descriptor) (*Plan, error) {
	if len(descs) == 0 {
		return nil, &errs.NoInputsError{}
	}
	plan := &Plan{Nodes: map[string][]Node{}}
	for _, d := range cfg.Dimensions {
		if !d.Unlimited {
			continue
		}
		nodes, err := planDim(cfg, d, descs)
		if err != nil {
			return nil, err
		}
		plan.Nodes[d.Name] = nodes
	}
	return plan, nil
}

func planDim(cfg *config.Config, d config.Dimension, descs []*granule.Descriptor) ([]Node, error) {
	if d.UDC != nil && d.UDC.Flatten {
		return planFlatten(d.Name, descs), nil
	}
	if d.UDC == nil || d.UDC.IndexBy == "" {
		return planConcat(d.Name, descs), nil
	}
	return planIndexed(cfg, d, descs)
}

// planConcat implements the no-UDC case: a single concatenation of
// InputSlice nodes in filename order, no sort/dedup/fill/bound behavior.
func planConcat(dim string, descs []*granule.Descriptor) []Node {
	ordered := append([]*granule.Descriptor(nil), descs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	var nodes []Node
	for _, desc := range ordered {
		n := desc.DimSizes[dim]
		if n == 0 {
			continue
		}
		nodes = append(nodes, &InputSlice{
			Path:  desc.Path,
			Dim:   dim,
			Nodes: []Node{&rawSlice{path: desc.Path, dim: dim, begin: 0, end: n}},
		})
	}
	return nodes
}

// planFlatten implements the flatten case: index_by is ignored for dim;
// each granule's own records are emitted left-justified in filename order
// and, if narrower than the widest granule along dim, padded on the right
// with a FillSegment so that every granule's contribution has equal width
// (spec section 4.4, "Flatten UDim"). This keeps the Node model's
// sum-of-sizes-equals-output-size invariant intact: the output size of dim
// is the per-granule padded width times the number of granules.
func planFlatten(dim string, descs []*granule.Descriptor) []Node {
	ordered := append([]*granule.Descriptor(nil), descs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	maxSize := 0
	for _, desc := range ordered {
		if n := desc.DimSizes[dim]; n > maxSize {
			maxSize = n
		}
	}

	var nodes []Node
	for _, desc := range ordered {
		n := desc.DimSizes[dim]
		sub := []Node{&rawSlice{path: desc.Path, dim: dim, begin: 0, end: n}}
		if n < maxSize {
			sub = append(sub, &FillSegment{Dim: dim, Count: maxSize - n})
		}
		nodes = append(nodes, &InputSlice{Path: desc.Path, Dim: dim, Nodes: sub})
	}
	return nodes
}

// granuleKept is one granule's sorted, bound-filtered, internally-deduped
// view along an indexed UDim: kept holds original on-disk indices into
// proj, in final sorted order.
type granuleKept struct {
	desc *granule.Descriptor
	proj []float64
	kept []int
}

func (g *granuleKept) first() float64 { return g.proj[g.kept[0]] }
func (g *granuleKept) last() float64  { return g.proj[g.kept[len(g.kept)-1]] }

// innerFillDim finds the inner dimension of iv (a multidimensional index_by
// variable) that carries its own configured cadence, per spec section 4.4
// step 5: "For multidim index_by, each inner dim with cadence generates a
// full inner lattice per outer fill record" (seed scenario S6). It returns
// the inner dimension's name and the per-position step (1/cadence) to feed
// into a FillSegment's InnerDim/InnerStep fields. If iv has no dimension
// other than d.Name with a positive ExpectedCadence entry — the common,
// single-dimension index_by case — it returns ("", 0), under which
// FillSegment broadcasts its outer value across the inner dimension.
func innerFillDim(d config.Dimension, iv *config.Variable) (string, float64) {
	for _, dn := range iv.Dims {
		if dn == d.Name {
			continue
		}
		if c := d.UDC.Cadence(dn); c > 0 {
			return dn, 1 / c
		}
	}
	return "", 0
}

// planIndexed implements spec section 4.4 steps 1-6 for a UDim with a
// configured index_by: gather, per-granule internal sort+dedup+bound-chop
// (step 2-3, 6), cross-granule dedup/trim (step 4), and cross-granule gap
// fill (step 5).
func planIndexed(cfg *config.Config, d config.Dimension, descs []*granule.Descriptor) ([]Node, error) {
	cadence := d.UDC.Cadence(d.Name)

	iv, ok := cfg.VarByName(d.UDC.IndexBy)
	if !ok {
		return nil, &errs.ConfigInvalidError{Reason: "index_by variable " + d.UDC.IndexBy + " not found"}
	}
	units := ""
	if iv.Attributes != nil {
		units, _ = iv.Attributes["units"].(string)
	}

	var lo, hi *float64
	if d.UDC.Min != nil {
		v, err := d.UDC.Min.ToNumeric(units)
		if err != nil {
			return nil, &errs.ConfigInvalidError{Reason: "dimension " + d.Name + " min: " + err.Error()}
		}
		lo = &v
	}
	if d.UDC.Max != nil {
		v, err := d.UDC.Max.ToNumeric(units)
		if err != nil {
			return nil, &errs.ConfigInvalidError{Reason: "dimension " + d.Name + " max: " + err.Error()}
		}
		hi = &v
	}

	innerDim, innerStep := innerFillDim(d, iv)

	var granules []*granuleKept
	for _, desc := range descs {
		ext, ok := desc.UDims[d.Name]
		if !ok || ext.NumRecords == 0 {
			continue
		}
		proj := ext.Projected
		if len(proj) == 0 {
			continue
		}

		idxs := make([]int, 0, len(proj))
		for i, v := range proj {
			if lo != nil && !withinLowerBound(v, *lo, cadence) {
				continue
			}
			if hi != nil && !withinUpperBound(v, *hi, cadence) {
				continue
			}
			idxs = append(idxs, i)
		}
		if len(idxs) == 0 {
			continue
		}
		sort.SliceStable(idxs, func(a, b int) bool {
			if proj[idxs[a]] != proj[idxs[b]] {
				return proj[idxs[a]] < proj[idxs[b]]
			}
			return idxs[a] < idxs[b]
		})

		kept := idxs[:1]
		for _, i := range idxs[1:] {
			if isDuplicate(proj[kept[len(kept)-1]], proj[i], cadence) {
				continue
			}
			kept = append(kept, i)
		}
		granules = append(granules, &granuleKept{desc: desc, proj: proj, kept: kept})
	}

	if len(granules) == 0 {
		return nil, nil
	}

	sort.SliceStable(granules, func(i, j int) bool {
		if granules[i].first() != granules[j].first() {
			return granules[i].first() < granules[j].first()
		}
		return granules[i].desc.Path < granules[j].desc.Path
	})

	// Step 4: cross-granule dedup/trim. A granule fully overlapped by its
	// predecessor is dropped.
	trimmed := granules[:0:0]
	for k, g := range granules {
		if k > 0 {
			prev := trimmed[len(trimmed)-1]
			for len(g.kept) > 0 && isDuplicate(prev.last(), g.proj[g.kept[0]], cadence) {
				g.kept = g.kept[1:]
			}
			if len(g.kept) == 0 {
				continue
			}
		}
		trimmed = append(trimmed, g)
	}
	granules = trimmed
	if len(granules) == 0 {
		return nil, nil
	}

	var nodes []Node

	if lo != nil && cadence > 0 {
		first := granules[0].first()
		if first > *lo+0.5/cadence {
			count := recordsBetween(*lo, first, cadence)
			nodes = append(nodes, &FillSegment{
				Dim: d.Name, Count: count, Start: first - float64(count)/cadence, Step: 1 / cadence,
				IndexByVar: d.UDC.IndexBy, InnerDim: innerDim, InnerStep: innerStep,
			})
		}
	}

	for k, g := range granules {
		nodes = append(nodes, buildGranuleMiniPlan(g, d.Name, cadence, d.UDC.IndexBy, innerDim, innerStep))
		if k+1 < len(granules) {
			next := granules[k+1]
			if isGap(g.last(), next.first(), cadence) {
				count := recordsBetween(g.last(), next.first(), cadence) - 1
				if count > 0 {
					nodes = append(nodes, &FillSegment{
						Dim: d.Name, Count: count, Start: g.last() + 1/cadence, Step: 1 / cadence,
						IndexByVar: d.UDC.IndexBy, InnerDim: innerDim, InnerStep: innerStep,
					})
				}
			}
		}
	}

	if hi != nil && cadence > 0 {
		last := granules[len(granules)-1].last()
		if last < *hi-0.5/cadence {
			count := recordsBetween(last, *hi, cadence) - 1
			if count > 0 {
				nodes = append(nodes, &FillSegment{
					Dim: d.Name, Count: count, Start: last + 1/cadence, Step: 1 / cadence,
					IndexByVar: d.UDC.IndexBy, InnerDim: innerDim, InnerStep: innerStep,
				})
			}
		}
	}

	return nodes, nil
}

// buildGranuleMiniPlan realizes one granule's own sorted, deduped,
// bound-chopped view along dim as an InputSlice, inserting inner
// FillSegments (step 6) wherever two adjacent kept records are further
// apart than cadence tolerance allows. innerDim/innerStep describe
// indexByVar's own inner-dimension cadence, if any (spec section 4.4 step
// 5), and are forwarded unchanged to every synthesized FillSegment.
func buildGranuleMiniPlan(g *granuleKept, dim string, cadence float64, indexByVar, innerDim string, innerStep float64) *InputSlice {
	var sub []Node
	runStart := g.kept[0]
	runEnd := g.kept[0] // inclusive, on-disk

	flushRun := func(endExclusive int) {
		sub = append(sub, &rawSlice{path: g.desc.Path, dim: dim, begin: runStart, end: endExclusive})
	}

	for i := 1; i < len(g.kept); i++ {
		prevIdx, curIdx := g.kept[i-1], g.kept[i]
		contiguousOnDisk := curIdx == runEnd+1
		gap := isGap(g.proj[prevIdx], g.proj[curIdx], cadence)

		if contiguousOnDisk && !gap {
			runEnd = curIdx
			continue
		}

		flushRun(runEnd + 1)
		if gap {
			count := recordsBetween(g.proj[prevIdx], g.proj[curIdx], cadence) - 1
			if count > 0 {
				sub = append(sub, &FillSegment{
					Dim: dim, Count: count, Start: g.proj[prevIdx] + 1/cadence, Step: 1 / cadence,
					IndexByVar: indexByVar, InnerDim: innerDim, InnerStep: innerStep,
				})
			}
		}
		runStart = curIdx
		runEnd = curIdx
	}
	flushRun(runEnd + 1)

	return &InputSlice{Path: g.desc.Path, Dim: dim, Nodes: sub}
}
