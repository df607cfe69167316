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
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
	"gonum.org/v1/gonum/floats"
)

// AttrContext supplies an attribute strategy's finalize step with the
// values the source engine read from ambient state; here they are
// threaded in explicitly (spec section 9, "Global state... must be passed
// in"), not read from package globals.
type AttrContext struct {
	OutputPath    string
	Min, Max      *float64 // the primary bound's numeric value, if configured
	EngineVersion string
	DateFormat    string
	Now           time.Time // injected so finalize is deterministic in tests
	InputCount    int
}

// attrState accumulates one GlobalAttrSpec's observations across the
// stream of input granules (spec section 4.6): observe is called once per
// contributing granule, in contribution order, then finalize once.
type attrState struct {
	spec config.GlobalAttrSpec

	seen         bool
	first, last  interface{}
	firstG, lastG string

	uniqueOrder []interface{}
	uniqueSeen  map[interface{}]bool

	intSum     int64
	floatVals  []float64
	constViol  error
}

func newAttrState(spec config.GlobalAttrSpec) *attrState {
	return &attrState{spec: spec, uniqueSeen: map[interface{}]bool{}}
}

// observe records one granule's raw value for this attribute, in
// contribution (output record) order.
func (s *attrState) observe(value interface{}, granule string) {
	if s.constViol != nil {
		return
	}
	if !s.seen {
		s.first, s.firstG = value, granule
		s.seen = true
	}
	s.last, s.lastG = value, granule

	switch s.spec.Strategy {
	case config.StrategyConstant:
		if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", s.first) {
			s.constViol = &errs.AttrNotConstantError{Attr: s.spec.Name, First: s.first, Observed: value, Granule: granule}
		}
	case config.StrategyUniqueList:
		if !s.uniqueSeen[value] {
			s.uniqueSeen[value] = true
			s.uniqueOrder = append(s.uniqueOrder, value)
		}
	case config.StrategyIntSum:
		if n, ok := toInt64(value); ok {
			s.intSum += n
		}
	case config.StrategyFloatSum:
		if f, ok := toFloat64(value); ok {
			s.floatVals = append(s.floatVals, f)
		}
	}
}

// finalize computes the strategy's output value, or reports present=false
// for the "remove" strategy (no attribute emitted at all).
func (s *attrState) finalize(ctx AttrContext) (value interface{}, present bool, err error) {
	if s.constViol != nil {
		return nil, false, s.constViol
	}
	switch s.spec.Strategy {
	case config.StrategyStatic:
		return s.spec.Value, true, nil
	case config.StrategyFirst, config.StrategyConstant:
		return s.first, true, nil
	case config.StrategyLast:
		return s.last, true, nil
	case config.StrategyUniqueList:
		strs := make([]string, len(s.uniqueOrder))
		for i, v := range s.uniqueOrder {
			strs[i] = fmt.Sprintf("%v", v)
		}
		return strings.Join(strs, ","), true, nil
	case config.StrategyIntSum:
		return s.intSum, true, nil
	case config.StrategyFloatSum:
		return floats.Sum(s.floatVals), true, nil
	case config.StrategyDateCreated:
		return ctx.Now.UTC().Format(ctx.DateFormat), true, nil
	case config.StrategyTimeCoverageStart:
		return s.boundOrObserved(ctx.Min, s.first, ctx), true, nil
	case config.StrategyTimeCoverageEnd:
		return s.boundOrObserved(ctx.Max, s.last, ctx), true, nil
	case config.StrategyFilename:
		return filepath.Base(ctx.OutputPath), true, nil
	case config.StrategyFirstInputFilename:
		return s.firstG, true, nil
	case config.StrategyLastInputFilename:
		return s.lastG, true, nil
	case config.StrategyInputCount:
		return ctx.InputCount, true, nil
	case config.StrategyNcaggVersion:
		return ctx.EngineVersion, true, nil
	case config.StrategyRemove:
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("ncagg: unknown attribute strategy %q", s.spec.Strategy)
}

func (s *attrState) boundOrObserved(bound *float64, observed interface{}, ctx AttrContext) interface{} {
	if bound != nil {
		return formatCFTime(*bound, ctx.DateFormat)
	}
	if v, ok := toFloat64(observed); ok {
		return formatCFTime(v, ctx.DateFormat)
	}
	return observed
}

// formatCFTime renders a raw index_by numeric value (a configured bound
// already converted to index_by's units, or an observed value) as the bare
// number formatted with %v. It does not produce a calendar date: the
// index_by variable's CF units string is not available here, and
// dateFormat is not used.
func formatCFTime(v float64, dateFormat string) string {
	return fmt.Sprintf("%v", v)
}
