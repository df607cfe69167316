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
	"testing"
	"time"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
)

func finalizeOne(t *testing.T, strategy config.Strategy, value interface{}, ctx AttrContext) (interface{}, bool, error) {
	t.Helper()
	s := newAttrState(config.GlobalAttrSpec{Name: "a", Strategy: strategy})
	if value != nil {
		s.observe(value, "g.nc")
	}
	return s.finalize(ctx)
}

func TestAttrStatic(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "title", Strategy: config.StrategyStatic, Value: "hello"})
	v, present, err := s.finalize(AttrContext{})
	if err != nil || !present || v != "hello" {
		t.Fatalf("finalize = %v, %v, %v", v, present, err)
	}
}

func TestAttrFirstAndLast(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "a", Strategy: config.StrategyFirst})
	s.observe(1.0, "a.nc")
	s.observe(2.0, "b.nc")
	v, _, _ := s.finalize(AttrContext{})
	if v != 1.0 {
		t.Errorf("first = %v, want 1.0", v)
	}

	s = newAttrState(config.GlobalAttrSpec{Name: "a", Strategy: config.StrategyLast})
	s.observe(1.0, "a.nc")
	s.observe(2.0, "b.nc")
	v, _, _ = s.finalize(AttrContext{})
	if v != 2.0 {
		t.Errorf("last = %v, want 2.0", v)
	}
}

func TestAttrConstantAgreesAndViolates(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "model", Strategy: config.StrategyConstant})
	s.observe("v1", "a.nc")
	s.observe("v1", "b.nc")
	v, present, err := s.finalize(AttrContext{})
	if err != nil || !present || v != "v1" {
		t.Fatalf("finalize = %v, %v, %v", v, present, err)
	}

	s = newAttrState(config.GlobalAttrSpec{Name: "model", Strategy: config.StrategyConstant})
	s.observe("v1", "a.nc")
	s.observe("v2", "b.nc")
	_, _, err = s.finalize(AttrContext{})
	if _, ok := err.(*errs.AttrNotConstantError); !ok {
		t.Fatalf("expected *errs.AttrNotConstantError, got %T: %v", err, err)
	}
}

func TestAttrUniqueList(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "sources", Strategy: config.StrategyUniqueList})
	s.observe("alpha", "a.nc")
	s.observe("beta", "b.nc")
	s.observe("alpha", "c.nc")
	v, _, err := s.finalize(AttrContext{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if v != "alpha,beta" {
		t.Errorf("unique_list = %q, want %q", v, "alpha,beta")
	}
}

func TestAttrIntSum(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "n", Strategy: config.StrategyIntSum})
	s.observe(int64(3), "a.nc")
	s.observe(int64(4), "b.nc")
	v, _, _ := s.finalize(AttrContext{})
	if v != int64(7) {
		t.Errorf("int_sum = %v, want 7", v)
	}
}

func TestAttrFloatSum(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "total", Strategy: config.StrategyFloatSum})
	s.observe(1.5, "a.nc")
	s.observe(2.5, "b.nc")
	v, _, _ := s.finalize(AttrContext{})
	if v != 4.0 {
		t.Errorf("float_sum = %v, want 4.0", v)
	}
}

func TestAttrDateCreated(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v, present, err := finalizeOne(t, config.StrategyDateCreated, nil, AttrContext{Now: now, DateFormat: "2006-01-02"})
	if err != nil || !present {
		t.Fatalf("finalize: %v, %v", present, err)
	}
	if v != "2024-03-01" {
		t.Errorf("date_created = %v, want 2024-03-01", v)
	}
}

func TestAttrTimeCoverageUsesBoundWhenConfigured(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "time_coverage_start", Strategy: config.StrategyTimeCoverageStart})
	s.observe(5.0, "a.nc")
	min := 1.0
	v, _, err := s.finalize(AttrContext{Min: &min, DateFormat: "2006-01-02"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if v != "1" {
		t.Errorf("time_coverage_start = %v, want the bound value (1), not the observed value (5)", v)
	}
}

func TestAttrTimeCoverageFallsBackToObserved(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "time_coverage_end", Strategy: config.StrategyTimeCoverageEnd})
	s.observe(5.0, "a.nc")
	v, _, err := s.finalize(AttrContext{DateFormat: "2006-01-02"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if v != "5" {
		t.Errorf("time_coverage_end = %v, want the observed value (5) with no bound configured", v)
	}
}

func TestAttrFilenameStrategies(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "f", Strategy: config.StrategyFilename})
	v, _, _ := s.finalize(AttrContext{OutputPath: "/out/merged.nc"})
	if v != "merged.nc" {
		t.Errorf("filename = %v, want merged.nc", v)
	}

	s = newAttrState(config.GlobalAttrSpec{Name: "f", Strategy: config.StrategyFirstInputFilename})
	s.observe("x", "first.nc")
	s.observe("x", "last.nc")
	v, _, _ = s.finalize(AttrContext{})
	if v != "first.nc" {
		t.Errorf("first_input_filename = %v, want first.nc", v)
	}

	s = newAttrState(config.GlobalAttrSpec{Name: "f", Strategy: config.StrategyLastInputFilename})
	s.observe("x", "first.nc")
	s.observe("x", "last.nc")
	v, _, _ = s.finalize(AttrContext{})
	if v != "last.nc" {
		t.Errorf("last_input_filename = %v, want last.nc", v)
	}
}

func TestAttrInputCountAndVersion(t *testing.T) {
	v, _, _ := finalizeOne(t, config.StrategyInputCount, nil, AttrContext{InputCount: 12})
	if v != 12 {
		t.Errorf("input_count = %v, want 12", v)
	}
	v, _, _ = finalizeOne(t, config.StrategyNcaggVersion, nil, AttrContext{EngineVersion: "1.2.3"})
	if v != "1.2.3" {
		t.Errorf("ncagg_version = %v, want 1.2.3", v)
	}
}

func TestAttrRemove(t *testing.T) {
	_, present, err := finalizeOne(t, config.StrategyRemove, nil, AttrContext{})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if present {
		t.Error("remove strategy should report present=false")
	}
}

func TestAttrObserveIgnoredAfterConstantViolation(t *testing.T) {
	s := newAttrState(config.GlobalAttrSpec{Name: "model", Strategy: config.StrategyConstant})
	s.observe("v1", "a.nc")
	s.observe("v2", "b.nc")
	s.observe("v3", "c.nc") // should be a no-op; the first violation wins
	_, _, err := s.finalize(AttrContext{})
	cv, ok := err.(*errs.AttrNotConstantError)
	if !ok {
		t.Fatalf("expected *errs.AttrNotConstantError, got %T", err)
	}
	if cv.Observed != "v2" {
		t.Errorf("expected the violation to record the first conflicting value (v2), got %v", cv.Observed)
	}
}
