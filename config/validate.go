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

package config

import (
	"fmt"

	"github.com/ctessum/ncagg/errs"
)

// Validate checks that c is internally consistent, per spec section 4.1:
//
//   - every variable's dimensions exist
//   - every chunk-size vector length equals the dim list length
//   - a UDC's index_by names an existing variable whose outer dim is the UDim
//   - bound expressions parse (already enforced by Parse/ParseBound)
//   - cadence entries reference dimensions that exist on index_by
//
// It returns a *errs.ConfigInvalidError on the first problem found.
func (c *Config) Validate() error {
	dims := c.DimMap()

	seenDim := map[string]bool{}
	for _, d := range c.Dimensions {
		if seenDim[d.Name] {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("duplicate dimension name %q", d.Name)}
		}
		seenDim[d.Name] = true
		if !d.Unlimited && d.Size <= 0 {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("dimension %q must have a positive size", d.Name)}
		}
	}

	seenVar := map[string]bool{}
	for _, v := range c.Variables {
		if seenVar[v.Name] {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("duplicate variable name %q", v.Name)}
		}
		seenVar[v.Name] = true

		if len(v.ChunkSizes) != len(v.Dims) {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf(
				"variable %q has %d dimensions but %d chunk sizes", v.Name, len(v.Dims), len(v.ChunkSizes))}
		}
		if v.Datatype == DTInvalid {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("variable %q has no valid datatype", v.Name)}
		}

		for i, dn := range v.Dims {
			d, ok := dims[dn]
			if !ok {
				return &errs.ConfigInvalidError{Reason: fmt.Sprintf("variable %q references unknown dimension %q", v.Name, dn)}
			}
			if d.Unlimited && i != 0 {
				return &errs.ConfigInvalidError{Reason: fmt.Sprintf(
					"variable %q uses unlimited dimension %q as other than its outermost dimension", v.Name, dn)}
			}
		}
	}

	for _, d := range c.Dimensions {
		if !d.Unlimited || d.UDC == nil || d.UDC.IndexBy == "" {
			continue
		}
		if err := c.validateUDC(d); err != nil {
			return err
		}
	}

	seenAttr := map[string]bool{}
	for _, a := range c.GlobalAttrs {
		if seenAttr[a.Name] {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("duplicate global attribute name %q", a.Name)}
		}
		seenAttr[a.Name] = true
		if !validStrategies[a.Strategy] {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("global attribute %q has unknown strategy %q", a.Name, a.Strategy)}
		}
		if a.Strategy == StrategyStatic && a.Value == nil {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("global attribute %q uses the static strategy but has no value", a.Name)}
		}
	}

	return nil
}

func (c *Config) validateUDC(d Dimension) error {
	iv, ok := c.VarByName(d.UDC.IndexBy)
	if !ok {
		return &errs.ConfigInvalidError{Reason: fmt.Sprintf(
			"dimension %q: index_by %q does not name a variable", d.Name, d.UDC.IndexBy)}
	}
	if len(iv.Dims) == 0 || iv.Dims[0] != d.Name {
		return &errs.ConfigInvalidError{Reason: fmt.Sprintf(
			"dimension %q: index_by variable %q's outer dimension is not %q", d.Name, d.UDC.IndexBy, d.Name)}
	}

	otherDims := iv.Dims[1:]
	ivOtherDims := map[string]bool{}
	for _, dn := range otherDims {
		ivOtherDims[dn] = true
	}
	for dn := range d.UDC.OtherDimIndices {
		if !ivOtherDims[dn] {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf(
				"dimension %q: other_dim_indices references %q, which is not a dimension of %q", d.Name, dn, d.UDC.IndexBy)}
		}
	}
	for _, dn := range otherDims {
		if _, ok := d.UDC.OtherDimIndices[dn]; !ok {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf(
				"dimension %q: index_by variable %q has dimension %q with no entry in other_dim_indices", d.Name, d.UDC.IndexBy, dn)}
		}
	}

	cadenceDims := map[string]bool{d.Name: true}
	for _, dn := range otherDims {
		cadenceDims[dn] = true
	}
	for dn := range d.UDC.ExpectedCadence {
		if !cadenceDims[dn] {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf(
				"dimension %q: expected_cadence references %q, which is not %q or one of index_by's dimensions", d.Name, dn, d.Name)}
		}
	}

	units := unitsOf(iv)
	if d.UDC.Min != nil {
		if _, err := d.UDC.Min.ToNumeric(units); err != nil {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("dimension %q: min bound: %v", d.Name, err)}
		}
	}
	if d.UDC.Max != nil {
		if _, err := d.UDC.Max.ToNumeric(units); err != nil {
			return &errs.ConfigInvalidError{Reason: fmt.Sprintf("dimension %q: max bound: %v", d.Name, err)}
		}
	}

	return nil
}

func unitsOf(v *Variable) string {
	if v.Attributes == nil {
		return ""
	}
	s, _ := v.Attributes["units"].(string)
	return s
}
