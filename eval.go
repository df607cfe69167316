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
	"time"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
	"github.com/ctessum/ncagg/granule"
	"github.com/sirupsen/logrus"
)

// Evaluator executes a Plan against a granule reader and writer (spec
// section 4.5): single-pass over nodes per unlimited-backed variable,
// one-shot copy for non-unlimited-backed variables, then attribute
// strategy finalization in Config order.
type Evaluator struct {
	Reader config.GranuleReader
	Writer config.GranuleWriter

	// Logger receives a warning when a one-shot variable copy fails; it
	// never aborts the aggregation (spec section 7's recovery policy).
	// Defaults to logrus.StandardLogger() if nil.
	Logger *logrus.Logger

	// Now is the wall-clock time used by the date_created attribute
	// strategy. Defaults to time.Now() if zero; exposed so tests are
	// deterministic and so no component reads ambient time itself.
	Now time.Time
}

func (e *Evaluator) now() time.Time {
	if e.Now.IsZero() {
		return time.Now()
	}
	return e.Now
}

func (e *Evaluator) logger() *logrus.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

// Run walks plan and writes every variable in cfg's declared order,
// checking ctx for cancellation between nodes and between variables, then
// finalizes global attributes in cfg order.
func (e *Evaluator) Run(ctx context.Context, cfg *config.Config, plan *Plan, descs []*granule.Descriptor) error {
	dims := cfg.DimMap()

	for i := range cfg.Variables {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		v := &cfg.Variables[i]
		dim := v.UnlimitedDim(dims)
		if dim == "" {
			e.copyOneShot(v, descs)
			continue
		}
		if err := e.writeUnlimited(ctx, cfg, v, dim, plan); err != nil {
			return err
		}
	}

	return e.finalizeAttrs(cfg, plan, descs)
}

func (e *Evaluator) writeUnlimited(ctx context.Context, cfg *config.Config, v *config.Variable, dim string, plan *Plan) error {
	dims := cfg.DimMap()
	cursor := 0
	for _, n := range plan.Nodes[dim] {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		size := n.SizeAlong(dim)
		if size == 0 {
			continue
		}
		data, err := n.DataFor(e.Reader, cfg, v, dim)
		if err != nil {
			return err
		}

		begin := make([]int, len(v.Dims))
		end := make([]int, len(v.Dims))
		for i, dn := range v.Dims {
			if dn == dim {
				begin[i], end[i] = cursor, cursor+size
				continue
			}
			end[i] = dims[dn].Size
		}
		if err := e.Writer.Write(v.Name, begin, end, data); err != nil {
			return &errs.IOError{Op: "write", Path: v.Name, Err: err}
		}
		cursor += size
	}
	return nil
}

// copyOneShot copies a variable with no unlimited dimension from the first
// granule whose descriptor reports it present. Failure is logged and
// non-fatal: the output keeps whatever default the writer supplies.
func (e *Evaluator) copyOneShot(v *config.Variable, descs []*granule.Descriptor) {
	for _, desc := range descs {
		if desc.Missing[v.Name] {
			continue
		}
		begin := make([]int, len(v.Dims))
		end := make([]int, len(v.Dims))
		for i, dn := range v.Dims {
			end[i] = desc.DimSizes[dn]
		}
		data, err := e.readOneShot(desc.Path, v.Name, begin, end)
		if err != nil {
			e.logger().WithFields(logrus.Fields{
				"variable": v.Name,
				"granule":  desc.Path,
			}).Warnf("ncagg: could not copy one-shot variable: %v", err)
			return
		}
		if err := e.Writer.Write(v.Name, begin, end, data); err != nil {
			e.logger().WithFields(logrus.Fields{
				"variable": v.Name,
				"granule":  desc.Path,
			}).Warnf("ncagg: could not write one-shot variable: %v", err)
		}
		return
	}
}

func (e *Evaluator) readOneShot(path, variable string, begin, end []int) (interface{}, error) {
	h, err := e.Reader.Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.ReadSlice(variable, begin, end)
}

func (e *Evaluator) finalizeAttrs(cfg *config.Config, plan *Plan, descs []*granule.Descriptor) error {
	order := contributionOrder(cfg, plan, descs)

	states := make([]*attrState, len(cfg.GlobalAttrs))
	for i, spec := range cfg.GlobalAttrs {
		st := newAttrState(spec)
		for _, desc := range order {
			if val, ok := desc.GlobalAttrs[spec.Name]; ok {
				st.observe(val, desc.Path)
			}
		}
		states[i] = st
	}

	ctx := e.attrContext(cfg, descs, order)

	for _, st := range states {
		value, present, err := st.finalize(ctx)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		if err := e.Writer.SetGlobalAttr(st.spec.Name, value); err != nil {
			return &errs.IOError{Op: "set_global_attr", Path: st.spec.Name, Err: err}
		}
	}
	return nil
}

// contributionOrder returns descs in output-record order: the order
// granules were retained in the first unlimited dimension's plan, or, if no
// unlimited dimension's plan holds an InputSlice, descs in the order given.
func contributionOrder(cfg *config.Config, plan *Plan, descs []*granule.Descriptor) []*granule.Descriptor {
	for _, d := range cfg.Dimensions {
		if !d.Unlimited {
			continue
		}
		seen := map[string]bool{}
		var order []*granule.Descriptor
		for _, n := range plan.Nodes[d.Name] {
			s, ok := n.(*InputSlice)
			if !ok || seen[s.Path] {
				continue
			}
			seen[s.Path] = true
			for _, desc := range descs {
				if desc.Path == s.Path {
					order = append(order, desc)
					break
				}
			}
		}
		if len(order) > 0 {
			return order
		}
	}
	ordered := append([]*granule.Descriptor(nil), descs...)
	return ordered
}

func (e *Evaluator) attrContext(cfg *config.Config, descs []*granule.Descriptor, order []*granule.Descriptor) AttrContext {
	ctx := AttrContext{
		EngineVersion: cfg.EngineVersion,
		DateFormat:    "2006-01-02T15:04:05Z",
		InputCount:    len(order),
		Now:           e.now(),
	}
	if cfg.DateFormat != "" {
		ctx.DateFormat = cfg.DateFormat
	}
	for _, d := range cfg.Dimensions {
		if !d.Unlimited || d.UDC == nil {
			continue
		}
		iv, ok := cfg.VarByName(d.UDC.IndexBy)
		units := ""
		if ok && iv.Attributes != nil {
			units, _ = iv.Attributes["units"].(string)
		}
		if d.UDC.Min != nil {
			if v, err := d.UDC.Min.ToNumeric(units); err == nil {
				ctx.Min = &v
			}
		}
		if d.UDC.Max != nil {
			if v, err := d.UDC.Max.ToNumeric(units); err == nil {
				ctx.Max = &v
			}
		}
		break
	}
	return ctx
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &errs.CancelledError{Err: ctx.Err()}
	default:
		return nil
	}
}
